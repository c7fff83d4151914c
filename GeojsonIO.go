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
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// GeoJSON中记录图层结构的扩展成员
const (
	memberFields       = "x_fields"
	memberGeometryType = "x_geometry_type"
	memberEncoding     = "x_encoding"
)

type geojsonField struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Width     int    `json:"width,omitempty"`
	Precision int    `json:"precision,omitempty"`
}

// GeoJSONWriter 流式写出GeoJSON FeatureCollection，要素逐个写入文件
type GeoJSONWriter struct {
	file   *os.File
	w      *bufio.Writer
	spec   SinkSpec
	count  int
	closed bool
}

// NewGeoJSONWriter 创建文件并写出集合头部
func NewGeoJSONWriter(filePath string, spec SinkSpec) (*GeoJSONWriter, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("创建GeoJSON文件失败: %v", err)
	}
	w := &GeoJSONWriter{file: file, w: bufio.NewWriter(file), spec: spec}
	if err := w.writeHeader(layerNameFromPath(filePath)); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *GeoJSONWriter) writeHeader(name string) error {
	fields := make([]geojsonField, len(w.spec.Fields))
	for i, f := range w.spec.Fields {
		fields[i] = geojsonField{Name: f.Name, Type: f.Type.String(), Width: f.Width, Precision: f.Precision}
	}
	encoding := w.spec.Encoding
	if encoding == "" {
		encoding = DefaultEncoding
	}

	header := []struct {
		key   string
		value any
	}{
		{"type", "FeatureCollection"},
		{"name", name},
		{memberGeometryType, w.spec.GeometryType.String()},
		{memberEncoding, encoding},
		{memberFields, fields},
	}
	if w.spec.CRS != "" {
		header = append(header, struct {
			key   string
			value any
		}{"crs", map[string]any{"type": "name", "properties": map[string]any{"name": w.spec.CRS}}})
	}

	if _, err := w.w.WriteString("{"); err != nil {
		return fmt.Errorf("写出GeoJSON头部失败: %v", err)
	}
	for _, member := range header {
		data, err := json.Marshal(member.value)
		if err != nil {
			return fmt.Errorf("写出GeoJSON头部失败: %v", err)
		}
		if _, err := fmt.Fprintf(w.w, "%q:%s,", member.key, data); err != nil {
			return fmt.Errorf("写出GeoJSON头部失败: %v", err)
		}
	}
	_, err := w.w.WriteString("\"features\":[\n")
	return err
}

// AddFeature 写出一个要素，属性按字段位置对应到属性名
func (w *GeoJSONWriter) AddFeature(f *Feature) error {
	if w.closed {
		return fmt.Errorf("GeoJSON输出已关闭")
	}
	if f == nil {
		return fmt.Errorf("要素为空")
	}

	props := make(map[string]any, len(w.spec.Fields))
	for i, field := range w.spec.Fields {
		props[field.Name] = f.Attributes.Value(i)
	}

	var data []byte
	var err error
	if f.HasGeometry() {
		gf := geojson.NewFeature(f.Geometry.Orb())
		gf.ID = f.ID
		gf.Properties = props
		data, err = json.Marshal(gf)
	} else {
		data, err = json.Marshal(map[string]any{
			"type":       "Feature",
			"id":         f.ID,
			"geometry":   nil,
			"properties": props,
		})
	}
	if err != nil {
		return fmt.Errorf("序列化要素 %d 失败: %v", f.ID, err)
	}

	if w.count > 0 {
		if _, err := w.w.WriteString(",\n"); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("写出要素 %d 失败: %v", f.ID, err)
	}
	w.count++
	return nil
}

// Close 写出集合尾部并关闭文件
func (w *GeoJSONWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := w.w.WriteString("\n]}\n"); err != nil {
		w.file.Close()
		return fmt.Errorf("写出GeoJSON尾部失败: %v", err)
	}
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("刷新GeoJSON文件失败: %v", err)
	}
	return w.file.Close()
}

// ReadGeoJSONFile 读取GeoJSON文件为内存图层。
// 优先使用文件中记录的字段结构，否则按属性名排序并根据属性值推断类型。
func ReadGeoJSONFile(filePath string) (*MemoryLayer, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取GeoJSON文件失败: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("解析GeoJSON失败: %v", err)
	}

	fields := fieldsFromMembers(fc.ExtraMembers)
	if fields == nil {
		fields = inferGeoJSONFields(fc)
	}

	geomType := GeomUnknown
	if name, ok := fc.ExtraMembers[memberGeometryType].(string); ok {
		geomType = ParseGeomType(name)
	}
	if geomType == GeomUnknown {
		for _, f := range fc.Features {
			if f.Geometry != nil {
				geomType = NewGeometry(f.Geometry).Type()
				break
			}
		}
	}

	layer := CreateMemoryLayer(layerNameFromPath(filePath), geomType, crsFromMembers(fc.ExtraMembers), fields)
	if enc, ok := fc.ExtraMembers[memberEncoding].(string); ok && enc != "" {
		layer.SetEncoding(enc)
	}

	for i, gf := range fc.Features {
		attrs := make(Attributes, len(fields))
		for j, field := range fields {
			attrs[j] = normalizeFieldValue(gf.Properties[field.Name], field.Type)
		}
		id, ok := geojsonFeatureID(gf.ID)
		if !ok {
			id = int64(i + 1)
		}
		if err := layer.AddFeature(&Feature{ID: id, Geometry: NewGeometry(gf.Geometry), Attributes: attrs}); err != nil {
			return nil, err
		}
	}
	return layer, nil
}

func fieldsFromMembers(members geojson.Properties) Fields {
	raw, ok := members[memberFields].([]any)
	if !ok {
		return nil
	}
	fields := make(Fields, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		name, _ := m["name"].(string)
		typeName, _ := m["type"].(string)
		width, _ := m["width"].(float64)
		precision, _ := m["precision"].(float64)
		fields = append(fields, Field{
			Name:      name,
			Type:      ParseFieldType(typeName),
			Width:     int(width),
			Precision: int(precision),
		})
	}
	return fields
}

func inferGeoJSONFields(fc *geojson.FeatureCollection) Fields {
	seen := make(map[string]struct{})
	types := make(map[string]FieldType)
	for _, f := range fc.Features {
		for name, value := range f.Properties {
			seen[name] = struct{}{}
			if value == nil {
				continue
			}
			t := inferFieldType(value)
			if prev, ok := types[name]; ok {
				t = widenFieldType(prev, t)
			}
			types[name] = t
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make(Fields, len(names))
	for i, name := range names {
		t, ok := types[name]
		if !ok {
			t = FieldTypeString
		}
		fields[i] = Field{Name: name, Type: t}
	}
	return fields
}

func crsFromMembers(members geojson.Properties) string {
	crs, ok := members["crs"].(map[string]any)
	if !ok {
		return ""
	}
	props, ok := crs["properties"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := props["name"].(string)
	return name
}

func geojsonFeatureID(id any) (int64, bool) {
	switch v := id.(type) {
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
