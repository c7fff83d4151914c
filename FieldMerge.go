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
	"strconv"
	"strings"
)

// FieldMergeStrategy 字段合并策略枚举
type FieldMergeStrategy int

const (
	// MergeWithSuffix 合并字段，表2字段重名时追加 _N 后缀（默认）
	MergeWithSuffix FieldMergeStrategy = iota
	// UseTable1Fields 只使用第一个表的字段
	UseTable1Fields
	// UseTable2Fields 只使用第二个表的字段
	UseTable2Fields
	// MergeWithPrefix 合并字段，表2字段加 l2_ 前缀，仍重名时再追加后缀
	MergeWithPrefix
)

// Table2FieldPrefix MergeWithPrefix策略下表2字段的前缀
const Table2FieldPrefix = "l2_"

func (s FieldMergeStrategy) String() string {
	switch s {
	case MergeWithSuffix:
		return "合并字段(重名加后缀)"
	case UseTable1Fields:
		return "只使用表1字段"
	case UseTable2Fields:
		return "只使用表2字段"
	case MergeWithPrefix:
		return "合并字段(使用前缀区分)"
	default:
		return "未知策略"
	}
}

// ParseFieldMergeStrategy 解析配置或命令行中的策略名称
func ParseFieldMergeStrategy(name string) (FieldMergeStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "suffix", "merge":
		return MergeWithSuffix, nil
	case "prefix":
		return MergeWithPrefix, nil
	case "a", "table1", "input":
		return UseTable1Fields, nil
	case "b", "table2", "method":
		return UseTable2Fields, nil
	default:
		return MergeWithSuffix, fmt.Errorf("不支持的字段策略: %s", name)
	}
}

// CombineFields 合并两个图层的字段定义。
// 表1字段原样保留；表2字段依次追加在其后，位置从 len(a) 开始连续编号。
// 表2字段名与已输出的任何字段名（包括之前重命名得到的名字）冲突时，
// 改名为 name_N，N 取使名字唯一的最小非负整数。字段类型、宽度、精度不变。
func CombineFields(a, b Fields, strategy FieldMergeStrategy) (Fields, error) {
	switch strategy {
	case UseTable1Fields:
		return a.Clone(), nil
	case UseTable2Fields:
		return b.Clone(), nil
	case MergeWithSuffix, MergeWithPrefix:
	default:
		return nil, fmt.Errorf("不支持的字段策略: %v", strategy)
	}

	prefix := ""
	if strategy == MergeWithPrefix {
		prefix = Table2FieldPrefix
	}

	result := make(Fields, 0, len(a)+len(b))
	taken := make(map[string]struct{}, len(a)+len(b))
	for _, f := range a {
		result = append(result, f)
		taken[f.Name] = struct{}{}
	}
	for _, f := range b {
		f.Name = uniqueFieldName(prefix+f.Name, taken)
		taken[f.Name] = struct{}{}
		result = append(result, f)
	}
	return result, nil
}

func uniqueFieldName(name string, taken map[string]struct{}) string {
	if _, ok := taken[name]; !ok {
		return name
	}
	for n := 0; ; n++ {
		candidate := name + "_" + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// CombineAttributes 按与CombineFields相同的位置规则合并两条属性记录：
// 表1的值在前，表2的值从 len(a) 开始依次追加，不去重不丢弃。
// n >= 0 时结果补齐（或截断）到 n 个值；表1记录缺失时其位置填nil。
func CombineAttributes(a, b Attributes, strategy FieldMergeStrategy, n int) Attributes {
	switch strategy {
	case UseTable1Fields:
		return a.Clone().resize(n)
	case UseTable2Fields:
		return b.Clone().resize(n)
	}

	mid := len(a)
	if a == nil && n >= 0 {
		mid = n - len(b)
		if mid < 0 {
			mid = 0
		}
	}
	result := make(Attributes, mid, mid+len(b))
	copy(result, a)
	result = append(result, b...)
	return result.resize(n)
}
