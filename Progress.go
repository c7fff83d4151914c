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
	"context"
	"fmt"
	"sync/atomic"
)

// ProgressReporter 进度与取消：每处理一个输入要素前查询一次
type ProgressReporter interface {
	SetMaximum(maximum int)
	SetValue(value int)
	WasCanceled() bool
}

// ProgressCallback 进度回调函数类型
// 返回值：true继续执行，false取消执行
type ProgressCallback func(complete float64, message string) bool

// CallbackProgress 把ProgressCallback适配为ProgressReporter
type CallbackProgress struct {
	callback ProgressCallback
	maximum  int
	value    int
	canceled atomic.Bool
}

// NewCallbackProgress 创建回调进度
func NewCallbackProgress(callback ProgressCallback) *CallbackProgress {
	return &CallbackProgress{callback: callback}
}

func (p *CallbackProgress) SetMaximum(maximum int) {
	p.maximum = maximum
}

func (p *CallbackProgress) SetValue(value int) {
	p.value = value
	if p.callback == nil || p.canceled.Load() {
		return
	}
	complete := 1.0
	if p.maximum > 0 {
		complete = float64(value) / float64(p.maximum)
	}
	message := fmt.Sprintf("已处理: %d/%d", value, p.maximum)
	if !p.callback(complete, message) {
		p.canceled.Store(true)
	}
}

func (p *CallbackProgress) WasCanceled() bool {
	return p.canceled.Load()
}

// Cancel 主动取消
func (p *CallbackProgress) Cancel() {
	p.canceled.Store(true)
}

// Value 当前进度值
func (p *CallbackProgress) Value() int {
	return p.value
}

// contextProgress 上下文结束即视为取消
type contextProgress struct {
	ctx   context.Context
	inner ProgressReporter
}

// ContextProgress 用context控制取消，inner可为nil
func ContextProgress(ctx context.Context, inner ProgressReporter) ProgressReporter {
	return &contextProgress{ctx: ctx, inner: progressOrNop(inner)}
}

func (p *contextProgress) SetMaximum(maximum int) {
	p.inner.SetMaximum(maximum)
}

func (p *contextProgress) SetValue(value int) {
	p.inner.SetValue(value)
}

func (p *contextProgress) WasCanceled() bool {
	return p.ctx.Err() != nil || p.inner.WasCanceled()
}

type nopProgress struct{}

func (nopProgress) SetMaximum(int)    {}
func (nopProgress) SetValue(int)      {}
func (nopProgress) WasCanceled() bool { return false }

func progressOrNop(p ProgressReporter) ProgressReporter {
	if p == nil {
		return nopProgress{}
	}
	return p
}
