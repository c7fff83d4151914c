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
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// mapFieldTypeToSQLite 将字段类型映射到SQLite列类型
func mapFieldTypeToSQLite(fieldType FieldType, width, precision int) string {
	switch fieldType {
	case FieldTypeInteger, FieldTypeInteger64, FieldTypeBoolean:
		return "INTEGER"

	case FieldTypeReal:
		if precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", width, precision)
		}
		return "REAL"

	case FieldTypeString:
		if width > 0 {
			return fmt.Sprintf("VARCHAR(%d)", width)
		}
		return "TEXT"

	case FieldTypeDate:
		return "DATE"

	case FieldTypeTime:
		return "TIME"

	case FieldTypeDateTime:
		return "DATETIME"

	case FieldTypeBinary:
		return "BLOB"

	default:
		return "TEXT"
	}
}

var sqlTypePattern = regexp.MustCompile(`^([a-z][a-z0-9 ]*?)\s*(?:\(([^)]*)\))?$`)

// parseSQLType 解析列类型字符串，返回基础类型和括号内的参数
func parseSQLType(sqlType string) (baseType string, params []int) {
	sqlType = strings.ToLower(strings.TrimSpace(sqlType))
	matches := sqlTypePattern.FindStringSubmatch(sqlType)
	if len(matches) < 2 {
		return sqlType, nil
	}

	baseType = strings.TrimSpace(matches[1])
	if len(matches) >= 3 && matches[2] != "" {
		for _, p := range strings.Split(matches[2], ",") {
			if val, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
				params = append(params, val)
			}
		}
	}
	return baseType, params
}

// mapSQLiteTypeToField 将SQLite列类型映射回字段类型
// 返回: 字段类型, 宽度, 精度
func mapSQLiteTypeToField(sqlType string) (FieldType, int, int) {
	baseType, params := parseSQLType(sqlType)

	switch baseType {
	case "integer", "int", "int4", "smallint", "tinyint", "mediumint":
		return FieldTypeInteger, 0, 0

	case "bigint", "int8":
		return FieldTypeInteger64, 0, 0

	case "boolean", "bool":
		return FieldTypeBoolean, 0, 0

	case "real", "double", "double precision", "float":
		return FieldTypeReal, 0, 0

	case "numeric", "decimal":
		width, precision := 18, 6
		if len(params) >= 1 {
			width = params[0]
		}
		if len(params) >= 2 {
			precision = params[1]
		}
		return FieldTypeReal, width, precision

	case "varchar", "character varying", "char", "character":
		width := 254
		if len(params) >= 1 {
			width = params[0]
		}
		return FieldTypeString, width, 0

	case "date":
		return FieldTypeDate, 0, 0

	case "time":
		return FieldTypeTime, 0, 0

	case "datetime", "timestamp":
		return FieldTypeDateTime, 0, 0

	case "blob", "bytea":
		return FieldTypeBinary, 0, 0

	default:
		return FieldTypeString, 0, 0
	}
}

// inferFieldType 根据属性值推断字段类型，无法判断时按字符串处理
func inferFieldType(value any) FieldType {
	switch v := value.(type) {
	case bool:
		return FieldTypeBoolean
	case int, int8, int16, int32, uint8, uint16:
		return FieldTypeInteger
	case int64, uint32, uint64, uint:
		return FieldTypeInteger64
	case float32:
		return FieldTypeReal
	case float64:
		// GeoJSON里的数字都解码为float64，整数值按Integer64处理
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return FieldTypeInteger64
		}
		return FieldTypeReal
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return FieldTypeInteger64
		}
		return FieldTypeReal
	case time.Time:
		return FieldTypeDateTime
	case []byte:
		return FieldTypeBinary
	default:
		return FieldTypeString
	}
}

// widenFieldType 同一字段出现不同类型的值时取能容纳两者的类型
func widenFieldType(a, b FieldType) FieldType {
	if a == b {
		return a
	}
	numeric := func(t FieldType) bool {
		return t == FieldTypeInteger || t == FieldTypeInteger64 || t == FieldTypeReal
	}
	if numeric(a) && numeric(b) {
		if a == FieldTypeReal || b == FieldTypeReal {
			return FieldTypeReal
		}
		return FieldTypeInteger64
	}
	return FieldTypeString
}

// convertFieldValue 将属性值转换为写入SQLite时使用的值
func convertFieldValue(value any, fieldType FieldType) any {
	if value == nil {
		return nil
	}
	switch fieldType {
	case FieldTypeInteger, FieldTypeInteger64:
		switch v := value.(type) {
		case float64:
			return int64(v)
		case float32:
			return int64(v)
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	case FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			if v {
				return 1
			}
			return 0
		}
	case FieldTypeString:
		switch v := value.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		default:
			return fmt.Sprint(v)
		}
	case FieldTypeDate, FieldTypeTime, FieldTypeDateTime:
		if t, ok := value.(time.Time); ok {
			return t.Format(time.RFC3339)
		}
	}
	return value
}

// normalizeFieldValue 将读取到的原始值规整为字段类型对应的Go类型
func normalizeFieldValue(value any, fieldType FieldType) any {
	if value == nil {
		return nil
	}
	switch fieldType {
	case FieldTypeInteger, FieldTypeInteger64:
		switch v := value.(type) {
		case float64:
			return int64(v)
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
		case bool:
			if v {
				return int64(1)
			}
			return int64(0)
		}
	case FieldTypeReal:
		switch v := value.(type) {
		case int64:
			return float64(v)
		case int:
			return float64(v)
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f
			}
		}
	case FieldTypeBoolean:
		switch v := value.(type) {
		case int64:
			return v != 0
		case float64:
			return v != 0
		}
	case FieldTypeString:
		if b, ok := value.([]byte); ok {
			return string(b)
		}
	}
	return value
}
