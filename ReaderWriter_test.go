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
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

var roundTripSpec = SinkSpec{
	Fields: Fields{
		{Name: "name", Type: FieldTypeString, Width: 32},
		{Name: "code", Type: FieldTypeInteger64},
		{Name: "area", Type: FieldTypeReal},
	},
	GeometryType: GeomPolygon,
	CRS:          "EPSG:4490",
	Encoding:     "GBK",
}

func writeRoundTrip(t *testing.T, path string) {
	t.Helper()
	sink, err := NewFileGeoWriter(path, roundTripSpec)
	if err != nil {
		t.Fatalf("NewFileGeoWriter() error = %v", err)
	}
	features := []*Feature{
		NewFeature(1, square(0, 0, 1, 1), "甲", int64(7), 1.5),
		NewFeature(2, nil, "乙", nil, nil),
		NewFeature(3, square(2, 2, 4, 3), nil, int64(9), 2.25),
	}
	for _, f := range features {
		if err := sink.AddFeature(f); err != nil {
			t.Fatalf("AddFeature() error = %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func assertRoundTrip(t *testing.T, layer *Layer) {
	t.Helper()
	p := layer.DataProvider()
	if p.GeometryType() != GeomPolygon || p.CRS() != "EPSG:4490" || p.Encoding() != "GBK" {
		t.Errorf("图层元数据 type=%s crs=%s encoding=%s", p.GeometryType(), p.CRS(), p.Encoding())
	}
	if !reflect.DeepEqual(p.Fields(), roundTripSpec.Fields) {
		t.Errorf("字段 = %+v, want %+v", p.Fields(), roundTripSpec.Fields)
	}
	if p.FeatureCount() != 3 {
		t.Fatalf("要素数 = %d, want 3", p.FeatureCount())
	}

	f1, ok := layer.FeatureAtID(1)
	if !ok {
		t.Fatal("缺少要素1")
	}
	if !reflect.DeepEqual(f1.Attributes, Attributes{"甲", int64(7), 1.5}) {
		t.Errorf("要素1属性 = %#v", f1.Attributes)
	}
	if !orb.Equal(f1.Geometry.Orb(), square(0, 0, 1, 1).Orb()) {
		t.Errorf("要素1几何 = %s", f1.Geometry)
	}

	f2, _ := layer.FeatureAtID(2)
	if f2.HasGeometry() || f2.Attributes.Value(1) != nil {
		t.Errorf("要素2 = %+v, want 空几何和空值", f2)
	}

	f3, _ := layer.FeatureAtID(3)
	if f3.Attributes.Value(0) != nil || f3.Attributes.Value(2) != 2.25 {
		t.Errorf("要素3属性 = %#v", f3.Attributes)
	}
	assertBBox(t, p.Extent(), 0, 0, 4, 3)
}

func TestGeoJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roads.geojson")
	writeRoundTrip(t, path)

	layer, err := ReadGeospatialFile(path)
	if err != nil {
		t.Fatalf("ReadGeospatialFile() error = %v", err)
	}
	if layer.GetLayerName() != "roads" {
		t.Errorf("图层名 = %s, want roads", layer.GetLayerName())
	}
	assertRoundTrip(t, layer)
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024 parcels.sqlite")
	writeRoundTrip(t, path)

	layer, err := ReadGeospatialFile(path)
	if err != nil {
		t.Fatalf("ReadGeospatialFile() error = %v", err)
	}
	if layer.GetLayerName() != "layer_2024_parcels" {
		t.Errorf("图层名 = %s, want layer_2024_parcels", layer.GetLayerName())
	}
	assertRoundTrip(t, layer)

	// 覆盖写出
	writeRoundTrip(t, path)
	if layer, err = ReadGeospatialFile(path, "layer_2024_parcels"); err != nil || layer.GetFeatureCount() != 3 {
		t.Errorf("覆盖后读取 count=%d err=%v", layer.GetFeatureCount(), err)
	}
}

func TestSQLiteRoundTrip_ReservedAndCaseFoldedNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.sqlite")
	spec := SinkSpec{
		Fields: Fields{
			{Name: "fid", Type: FieldTypeInteger64},
			{Name: "NAME", Type: FieldTypeString},
			{Name: "name", Type: FieldTypeString},
			{Name: "geom", Type: FieldTypeString},
			{Name: "name_1", Type: FieldTypeString},
		},
		GeometryType: GeomPolygon,
	}
	sink, err := NewFileGeoWriter(path, spec)
	if err != nil {
		t.Fatalf("NewFileGeoWriter() error = %v", err)
	}
	if err := sink.AddFeature(NewFeature(1, square(0, 0, 1, 1), int64(42), "upper", "lower", "text", "other")); err != nil {
		t.Fatalf("AddFeature() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	layer, err := ReadGeospatialFile(path)
	if err != nil {
		t.Fatalf("ReadGeospatialFile() error = %v", err)
	}
	if got := layer.DataProvider().Fields(); !reflect.DeepEqual(got, spec.Fields) {
		t.Errorf("字段 = %+v, want %+v", got, spec.Fields)
	}
	f, ok := layer.FeatureAtID(1)
	if !ok {
		t.Fatal("缺少要素1")
	}
	want := Attributes{int64(42), "upper", "lower", "text", "other"}
	if !reflect.DeepEqual(f.Attributes, want) {
		t.Errorf("属性 = %#v, want %#v", f.Attributes, want)
	}
	if !orb.Equal(f.Geometry.Orb(), square(0, 0, 1, 1).Orb()) {
		t.Errorf("几何 = %s", f.Geometry)
	}
}

func TestSQLiteColumnNames(t *testing.T) {
	fields := Fields{{Name: "FID"}, {Name: "name"}, {Name: "Name"}, {Name: "name_1"}, {Name: ""}, {Name: "Geom"}}
	want := []string{"FID_1", "name", "Name_1", "name_1_1", "field_5", "Geom_1"}
	if got := sqliteColumnNames(fields); !reflect.DeepEqual(got, want) {
		t.Errorf("sqliteColumnNames() = %v, want %v", got, want)
	}
}

func TestIntersection_SQLiteOutputWithConflictingNames(t *testing.T) {
	layerA := testLayer(t, "a", GeomPolygon,
		Fields{{Name: "fid", Type: FieldTypeInteger64}, {Name: "NAME", Type: FieldTypeString}},
		NewFeature(1, square(0, 0, 2, 2), int64(7), "甲"))
	layerB := testLayer(t, "b", GeomPolygon, Fields{{Name: "name", Type: FieldTypeString}},
		NewFeature(1, square(1, 1, 3, 3), "乙"))
	output := filepath.Join(t.TempDir(), "out.sqlite")

	result, err := NewOverlayAnalyzer().RunIntersection(layerA, layerB, output, false, nil)
	if err != nil {
		t.Fatalf("RunIntersection() error = %v", err)
	}
	if result.Written != 1 || len(result.WriteErrors) != 0 {
		t.Fatalf("result = %+v", result)
	}

	layer, err := ReadGeospatialFile(output)
	if err != nil {
		t.Fatalf("ReadGeospatialFile() error = %v", err)
	}
	if names := layer.DataProvider().Fields().Names(); !reflect.DeepEqual(names, []string{"fid", "NAME", "name"}) {
		t.Errorf("字段 = %v", names)
	}
	f, ok := layer.FeatureAtID(1)
	if !ok {
		t.Fatal("缺少输出要素")
	}
	if want := (Attributes{int64(7), "甲", "乙"}); !reflect.DeepEqual(f.Attributes, want) {
		t.Errorf("属性 = %#v, want %#v", f.Attributes, want)
	}
}

func TestReadGeoJSON_InferFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.json")
	content := `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"n":null,"v":1,"s":"x"}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},"properties":{"n":2.5,"v":2,"flag":true}}
]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	layer, err := ReadGeoJSONFile(path)
	if err != nil {
		t.Fatalf("ReadGeoJSONFile() error = %v", err)
	}
	want := Fields{
		{Name: "flag", Type: FieldTypeBoolean},
		{Name: "n", Type: FieldTypeReal},
		{Name: "s", Type: FieldTypeString},
		{Name: "v", Type: FieldTypeInteger64},
	}
	if !reflect.DeepEqual(layer.Fields(), want) {
		t.Errorf("推断字段 = %+v, want %+v", layer.Fields(), want)
	}
	if layer.GeometryType() != GeomPoint {
		t.Errorf("几何类型 = %s, want Point", layer.GeometryType())
	}
	// 没有id的要素按顺序编号
	f, ok := layer.FeatureByID(2)
	if !ok || f.Attributes.Value(3) != int64(2) {
		t.Errorf("要素2 = %+v", f)
	}
}

func TestReadSQLite_WithoutMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	wkb, _ := square(0, 0, 1, 1).WKB()
	for _, stmt := range []string{
		`CREATE TABLE parcels (fid INTEGER PRIMARY KEY, geom BLOB, owner VARCHAR(40), price NUMERIC(10,2))`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec(`INSERT INTO parcels VALUES (5, ?, 'li', 12.5)`, wkb); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := ReadSQLiteFile(path, ""); err == nil {
		t.Error("没有元数据且未指定表名时应返回错误")
	}
	layer, err := ReadSQLiteFile(path, "parcels")
	if err != nil {
		t.Fatalf("ReadSQLiteFile() error = %v", err)
	}
	want := Fields{
		{Name: "owner", Type: FieldTypeString, Width: 40},
		{Name: "price", Type: FieldTypeReal, Width: 10, Precision: 2},
	}
	if !reflect.DeepEqual(layer.Fields(), want) {
		t.Errorf("字段 = %+v, want %+v", layer.Fields(), want)
	}
	f, ok := layer.FeatureByID(5)
	if !ok || !f.HasGeometry() || f.Attributes.Value(0) != "li" {
		t.Errorf("要素5 = %+v", f)
	}
}

func TestFileFormats(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFileGeoWriter(filepath.Join(dir, "out.shp"), roundTripSpec); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("写出.shp error = %v, want ErrUnsupportedFormat", err)
	}
	// GeoPackage需要gpkg_contents等元数据表，SQLite输出不生成这些表
	if _, err := NewFileGeoWriter(filepath.Join(dir, "out.gpkg"), roundTripSpec); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("写出.gpkg error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.gpkg")); !os.IsNotExist(err) {
		t.Error("不支持的格式不应创建文件")
	}
	if _, err := ReadGeospatialFile(filepath.Join(dir, "in.kml")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("读取.kml error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := ReadGeospatialFile(filepath.Join(dir, "missing.sqlite")); err == nil {
		t.Error("读取不存在的文件应返回错误")
	}

	dup := SinkSpec{Fields: Fields{{Name: "a"}, {Name: "a"}}}
	if _, err := NewFileGeoWriter(filepath.Join(dir, "dup.geojson"), dup); err == nil {
		t.Error("重复字段名应返回错误")
	}
	if _, err := os.Stat(filepath.Join(dir, "dup.geojson")); !os.IsNotExist(err) {
		t.Error("字段无效时不应创建文件")
	}
}

func TestLayerNameFromPath(t *testing.T) {
	tests := map[string]string{
		"/tmp/roads.geojson":   "roads",
		"/tmp/my-layer.sqlite": "my_layer",
		"/tmp/2024.db":         "layer_2024",
		"/tmp/.geojson":        "layer_",
	}
	for in, want := range tests {
		if got := layerNameFromPath(in); got != want {
			t.Errorf("layerNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
