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
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

func openTestTaskStore(t *testing.T) *TaskStore {
	t.Helper()
	store, err := OpenTaskStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenTaskStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTaskStore_RecordsRuns(t *testing.T) {
	store := openTestTaskStore(t)
	layerA, layerB := overlapLayers(t)
	a := memoryAnalyzer(NewMemoryStore(), WithTaskStore(store))

	ok, err := a.RunIntersection(layerA, layerB, "memory:ok", false, nil)
	if err != nil {
		t.Fatal(err)
	}
	failed, err := a.RunClip(layerA, NewLayer("broken", nil), "memory:bad", false, nil)
	if err == nil {
		t.Fatal("RunClip() 应失败")
	}

	task, err := store.Get(ok.TaskID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if task.Status != TaskStatusSuccess || task.Operation != OperationIntersection ||
		task.InputLayer != "a" || task.MethodLayer != "b" || task.Written != 3 || task.FinishedAt == nil {
		t.Errorf("成功任务记录 = %+v", task)
	}

	task, err = store.Get(failed.TaskID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if task.Status != TaskStatusFailed || task.Error == "" {
		t.Errorf("失败任务记录 = %+v", task)
	}

	tasks, err := store.List(1)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("List(1) = %v, %v", tasks, err)
	}
	if tasks[0].TaskID != failed.TaskID {
		t.Errorf("List() 应按时间倒序, got %s", tasks[0].TaskID)
	}

	if _, err := store.Get("missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestTaskStore_Canceled(t *testing.T) {
	store := openTestTaskStore(t)
	layerA, layerB := overlapLayers(t)
	a := memoryAnalyzer(NewMemoryStore(), WithTaskStore(store))

	p := NewCallbackProgress(nil)
	p.Cancel()
	result, err := a.RunIntersection(layerA, layerB, "memory:c", false, p)
	if err != nil {
		t.Fatal(err)
	}
	task, err := store.Get(result.TaskID)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != TaskStatusCanceled || !task.Canceled {
		t.Errorf("取消任务记录 = %+v", task)
	}
}

func TestNewTaskStore_NilDB(t *testing.T) {
	if _, err := NewTaskStore(nil); err == nil {
		t.Error("NewTaskStore(nil) 应返回错误")
	}
}
