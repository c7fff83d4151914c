/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package GoOverlay

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 任务状态
const (
	TaskStatusRunning  = "running"
	TaskStatusSuccess  = "success"
	TaskStatusCanceled = "canceled"
	TaskStatusFailed   = "failed"
)

// OverlayTask 一次叠加分析的运行记录
type OverlayTask struct {
	ID           uint   `gorm:"primaryKey"`
	TaskID       string `gorm:"uniqueIndex;size:36"`
	Operation    string `gorm:"size:32;index"`
	InputLayer   string
	MethodLayer  string
	Output       string
	OnlySelected bool
	Strategy     string
	Processed    int
	Written      int
	Skipped      int
	WriteErrors  int
	Canceled     bool
	Status       string `gorm:"size:16;index"`
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// TaskStore 基于gorm的任务台账
type TaskStore struct {
	DB *gorm.DB
}

// OpenTaskStore 打开（或创建）SQLite任务库并迁移表结构
func OpenTaskStore(path string) (*TaskStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开任务库失败: %v", err)
	}
	store, err := NewTaskStore(db)
	if err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return store, nil
}

// NewTaskStore 使用已有连接创建任务台账
func NewTaskStore(db *gorm.DB) (*TaskStore, error) {
	if db == nil {
		return nil, errors.New("数据库连接为空")
	}
	if err := db.AutoMigrate(&OverlayTask{}); err != nil {
		return nil, fmt.Errorf("迁移任务表失败: %v", err)
	}
	return &TaskStore{DB: db}, nil
}

// Begin 记录任务开始
func (s *TaskStore) Begin(task *OverlayTask) error {
	task.Status = TaskStatusRunning
	if task.StartedAt.IsZero() {
		task.StartedAt = time.Now()
	}
	return s.DB.Create(task).Error
}

// Finish 写入任务结果和最终状态
func (s *TaskStore) Finish(result *OverlayResult, runErr error) error {
	status := TaskStatusSuccess
	errText := ""
	switch {
	case runErr != nil:
		status = TaskStatusFailed
		errText = runErr.Error()
	case result.Canceled:
		status = TaskStatusCanceled
	}
	now := time.Now()
	return s.DB.Model(&OverlayTask{}).
		Where("task_id = ?", result.TaskID).
		Updates(map[string]interface{}{
			"processed":    result.Processed,
			"written":      result.Written,
			"skipped":      result.Skipped,
			"write_errors": len(result.WriteErrors),
			"canceled":     result.Canceled,
			"status":       status,
			"error":        errText,
			"finished_at":  &now,
		}).Error
}

// Get 按任务ID查询
func (s *TaskStore) Get(taskID string) (*OverlayTask, error) {
	var task OverlayTask
	if err := s.DB.Where("task_id = ?", taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List 按开始时间倒序返回最近的任务，limit<=0 表示不限
func (s *TaskStore) List(limit int) ([]OverlayTask, error) {
	var tasks []OverlayTask
	q := s.DB.Order("started_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Close 关闭底层连接
func (s *TaskStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
