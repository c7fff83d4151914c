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
	"fmt"
	"strings"
)

// FieldType 属性字段类型
type FieldType int

const (
	FieldTypeInteger FieldType = iota
	FieldTypeInteger64
	FieldTypeReal
	FieldTypeString
	FieldTypeDate
	FieldTypeTime
	FieldTypeDateTime
	FieldTypeBinary
	FieldTypeBoolean
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeInteger:
		return "Integer"
	case FieldTypeInteger64:
		return "Integer64"
	case FieldTypeReal:
		return "Real"
	case FieldTypeString:
		return "String"
	case FieldTypeDate:
		return "Date"
	case FieldTypeTime:
		return "Time"
	case FieldTypeDateTime:
		return "DateTime"
	case FieldTypeBinary:
		return "Binary"
	case FieldTypeBoolean:
		return "Boolean"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field 字段定义
type Field struct {
	Name      string
	Type      FieldType
	Width     int
	Precision int
}

// Fields 有序字段列表，切片下标即字段位置
type Fields []Field

// Names 按位置返回全部字段名
func (fs Fields) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// IndexOf 按名称查找字段位置，大小写敏感，找不到返回-1
func (fs Fields) IndexOf(name string) int {
	for i, f := range fs {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Clone 复制字段列表
func (fs Fields) Clone() Fields {
	if fs == nil {
		return nil
	}
	out := make(Fields, len(fs))
	copy(out, fs)
	return out
}

// Validate 检查字段名非空且唯一
func (fs Fields) Validate() error {
	seen := make(map[string]struct{}, len(fs))
	for i, f := range fs {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("第 %d 个字段名为空", i)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("字段名重复: %s", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Attributes 有序属性记录，下标与字段位置一一对应，nil表示空值
type Attributes []any

// Clone 复制属性记录
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

// Value 读取指定位置的属性值，越界返回nil
func (a Attributes) Value(index int) any {
	if index < 0 || index >= len(a) {
		return nil
	}
	return a[index]
}

// resize 截断或用nil补齐到n个值
func (a Attributes) resize(n int) Attributes {
	if n < 0 || len(a) == n {
		return a
	}
	if len(a) > n {
		return a[:n]
	}
	out := make(Attributes, n)
	copy(out, a)
	return out
}

// ParseFieldType 按名称解析字段类型，未知名称按字符串处理
func ParseFieldType(name string) FieldType {
	for t := FieldTypeInteger; t <= FieldTypeBoolean; t++ {
		if strings.EqualFold(t.String(), name) {
			return t
		}
	}
	return FieldTypeString
}
