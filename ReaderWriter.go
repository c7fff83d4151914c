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
	"os"
	"path/filepath"
	"strings"
)

// MemoryScheme 内存输出位置前缀，例如 memory:result
const MemoryScheme = "memory:"

// ErrUnsupportedFormat 输出或输入位置的文件类型不受支持
var ErrUnsupportedFormat = errors.New("不支持的文件类型")

// SinkSpec 输出目标在创建时确定的字段、几何类型、坐标系和编码
type SinkSpec struct {
	Fields       Fields
	GeometryType GeomType
	CRS          string
	Encoding     string
}

// FeatureSink 输出目标，逐个追加要素，Close时落盘
type FeatureSink interface {
	AddFeature(f *Feature) error
	Close() error
}

// SinkFactory 按位置和规格创建输出目标
type SinkFactory func(location string, spec SinkSpec) (FeatureSink, error)

const (
	formatGeoJSON = "geojson"
	formatSQLite  = "sqlite"
)

func determineFileType(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".geojson", ".json":
		return formatGeoJSON, nil
	case ".sqlite", ".db":
		return formatSQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// NewFileGeoWriter 默认的SinkFactory：按扩展名创建GeoJSON或SQLite输出，已存在的文件会被覆盖
func NewFileGeoWriter(location string, spec SinkSpec) (FeatureSink, error) {
	fileType, err := determineFileType(location)
	if err != nil {
		return nil, err
	}
	if err := spec.Fields.Validate(); err != nil {
		return nil, fmt.Errorf("输出字段定义无效: %v", err)
	}

	if _, err := os.Stat(location); err == nil {
		if err := os.Remove(location); err != nil {
			return nil, fmt.Errorf("删除已存在的输出文件失败: %v", err)
		}
	}

	switch fileType {
	case formatGeoJSON:
		return NewGeoJSONWriter(location, spec)
	default:
		return NewSQLiteWriter(location, spec)
	}
}

// ReadGeospatialFile 读取GeoJSON或SQLite文件为图层。
// SQLite文件可通过layerName指定表名，缺省读取第一个图层。
func ReadGeospatialFile(filePath string, layerName ...string) (*Layer, error) {
	fileType, err := determineFileType(filePath)
	if err != nil {
		return nil, err
	}

	var memLayer *MemoryLayer
	switch fileType {
	case formatGeoJSON:
		memLayer, err = ReadGeoJSONFile(filePath)
	default:
		table := ""
		if len(layerName) > 0 {
			table = layerName[0]
		}
		memLayer, err = ReadSQLiteFile(filePath, table)
	}
	if err != nil {
		return nil, err
	}
	return memLayer.Layer(), nil
}

// layerNameFromPath 由文件名生成合法的图层/表名
func layerNameFromPath(filePath string) string {
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "layer_" + name
	}
	return name
}
