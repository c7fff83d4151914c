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
	"reflect"
	"testing"
)

// coveringLayer 两个都完全覆盖A图层范围的裁剪要素
func coveringLayer(t *testing.T) *Layer {
	t.Helper()
	return testLayer(t, "cover", GeomPolygon, Fields{{Name: "zone", Type: FieldTypeString}},
		NewFeature(1, square(-1, -1, 15, 5), "outer"),
		NewFeature(2, square(-2, -2, 16, 3), "lower"),
	)
}

func TestClip_FullCoverage(t *testing.T) {
	layerA, _ := overlapLayers(t)
	store := NewMemoryStore()

	result, err := memoryAnalyzer(store).RunClip(layerA, coveringLayer(t), "memory:clip", false, nil)
	if err != nil {
		t.Fatalf("RunClip() error = %v", err)
	}
	if result.Processed != 2 || result.Written != 2 {
		t.Errorf("result = %+v, want processed=2 written=2", result)
	}

	out, _ := store.Get("memory:clip")
	if names := out.Fields().Names(); !reflect.DeepEqual(names, []string{"name", "code"}) {
		t.Errorf("裁剪输出只保留输入字段, got %v", names)
	}
	features := out.Features()
	if len(features) != 2 {
		t.Fatalf("输出要素数 = %d, want 2", len(features))
	}
	// 第二个裁剪要素把上边界压到 y=3
	assertBBox(t, features[0].Geometry.BoundingBox(), 0, 0, 4, 3)
	assertBBox(t, features[1].Geometry.BoundingBox(), 10, 0, 14, 3)
	if !reflect.DeepEqual(features[1].Attributes, Attributes{"a2", 20}) {
		t.Errorf("属性 = %v, want [a2 20]", features[1].Attributes)
	}
}

func TestClip_FoldStopsOnEmpty(t *testing.T) {
	// overlapLayers的B图层中没有一个要素与A的每个要素都相交
	layerA, layerB := overlapLayers(t)
	store := NewMemoryStore()

	result, err := memoryAnalyzer(store).RunClip(layerA, layerB, "memory:clip", false, nil)
	if err != nil {
		t.Fatalf("RunClip() error = %v", err)
	}
	if result.Written != 0 || result.Skipped != 2 {
		t.Errorf("result = %+v, want written=0 skipped=2", result)
	}
}

func TestClip_ExtentPrefilter(t *testing.T) {
	fields := Fields{{Name: "id", Type: FieldTypeInteger}}
	layerA := testLayer(t, "a", GeomPolygon, fields,
		NewFeature(1, square(0, 0, 1, 1), 1),
		NewFeature(2, square(100, 100, 101, 101), 2),
		NewFeature(3, nil, 3),
	)
	clip := testLayer(t, "clip", GeomPolygon, fields, NewFeature(1, square(-1, -1, 2, 2), 1))
	store := NewMemoryStore()

	result, err := memoryAnalyzer(store).RunClip(layerA, clip, "memory:clip", false, nil)
	if err != nil {
		t.Fatalf("RunClip() error = %v", err)
	}
	if result.Processed != 1 || result.Written != 1 {
		t.Errorf("result = %+v, want processed=1 written=1 (范围外和无几何要素不参与)", result)
	}
}

func TestClip_EmptyClipLayer(t *testing.T) {
	layerA, _ := overlapLayers(t)
	fields := Fields{{Name: "id", Type: FieldTypeInteger}}
	clip := testLayer(t, "clip", GeomPolygon, fields, NewFeature(1, nil, 1))
	store := NewMemoryStore()

	result, err := memoryAnalyzer(store).RunClip(layerA, clip, "memory:clip", false, nil)
	if err != nil {
		t.Fatalf("RunClip() error = %v", err)
	}
	if result.Processed != 0 || result.Written != 0 {
		t.Errorf("result = %+v, want nothing processed", result)
	}
	out, ok := store.Get("memory:clip")
	if !ok || len(out.Features()) != 0 {
		t.Error("裁剪图层为空时应创建空的输出图层")
	}
}

func TestClip_OnlySelected(t *testing.T) {
	layerA, _ := overlapLayers(t)
	layerA.Select(2)
	clip := coveringLayer(t)
	clip.Select(1)
	store := NewMemoryStore()

	result, err := memoryAnalyzer(store).RunClip(layerA, clip, "memory:clip", true, nil)
	if err != nil {
		t.Fatalf("RunClip() error = %v", err)
	}
	if result.Written != 1 {
		t.Fatalf("Written = %d, want 1", result.Written)
	}
	out, _ := store.Get("memory:clip")
	f := out.Features()[0]
	if f.Attributes.Value(0) != "a2" {
		t.Errorf("输出要素 = %v, want a2", f.Attributes)
	}
	// 只用选中的裁剪要素，上边界保持 y=4
	assertBBox(t, f.Geometry.BoundingBox(), 10, 0, 14, 4)
}

func TestClip_Preconditions(t *testing.T) {
	layerA, _ := overlapLayers(t)
	store := NewMemoryStore()
	a := memoryAnalyzer(store)

	if a.Clip(layerA, NewLayer("broken", nil), "memory:clip", false, nil) {
		t.Error("裁剪图层无数据源时应失败")
	}
	if _, ok := store.Get("memory:clip"); ok {
		t.Error("前置条件失败时不应创建输出")
	}
}

func TestClip_Cancel(t *testing.T) {
	fields := Fields{{Name: "id", Type: FieldTypeInteger}}
	var features []*Feature
	for i := 1; i <= 5; i++ {
		features = append(features, NewFeature(int64(i), square(0, 0, 1, 1), i))
	}
	layerA := testLayer(t, "a", GeomPolygon, fields, features...)
	clip := testLayer(t, "clip", GeomPolygon, fields, NewFeature(1, square(-1, -1, 2, 2), 1))
	store := NewMemoryStore()

	// 处理完2个要素后取消
	progress := NewCallbackProgress(func(complete float64, message string) bool {
		return complete < 0.4
	})

	result, err := memoryAnalyzer(store).RunClip(layerA, clip, "memory:clip", false, progress)
	if err != nil {
		t.Fatalf("取消不应视为失败: %v", err)
	}
	if !result.Canceled || result.Processed != 2 || result.Written != 2 {
		t.Errorf("result = %+v, want canceled processed=2 written=2", result)
	}
	out, ok := store.Get("memory:clip")
	if !ok {
		t.Fatal("取消时已创建的输出应保留")
	}
	got := out.Features()
	if len(got) != 2 {
		t.Fatalf("已处理要素的结果应保留, got %d", len(got))
	}
	if got[0].Attributes.Value(0) != 1 || got[1].Attributes.Value(0) != 2 {
		t.Errorf("输出属性 = %v, %v, want 1, 2", got[0].Attributes, got[1].Attributes)
	}
}

func TestClip_ShortRecordsPadded(t *testing.T) {
	memA := CreateMemoryLayer("a", GeomPolygon, "EPSG:4326",
		Fields{{Name: "a1", Type: FieldTypeString}, {Name: "a2", Type: FieldTypeString}})
	if err := memA.AddFeature(NewFeature(1, square(0, 0, 2, 2), "x", "dropped")); err != nil {
		t.Fatal(err)
	}
	layerA := NewLayer("a", shortRecords{MemoryLayer: memA, keep: 1})

	sink := &recordingSink{}
	a := NewOverlayAnalyzer()
	a.Options.SinkFactory = func(string, SinkSpec) (FeatureSink, error) { return sink, nil }

	if _, err := a.RunClip(layerA, coveringLayer(t), "any", false, nil); err != nil {
		t.Fatalf("RunClip() error = %v", err)
	}
	if len(sink.features) != 1 {
		t.Fatalf("输出要素数 = %d, want 1", len(sink.features))
	}
	if got, want := sink.features[0].Attributes, (Attributes{"x", nil}); !reflect.DeepEqual(got, want) {
		t.Errorf("属性 = %v, want %v", got, want)
	}
}
