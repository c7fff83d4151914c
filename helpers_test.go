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
	"testing"

	"github.com/paulmach/orb"
)

// square 轴对齐正方形/矩形面
func square(minX, minY, maxX, maxY float64) *Geometry {
	return NewGeometry(orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}

// testLayer 用给定要素创建内存图层，要素ID保持不变
func testLayer(t *testing.T, name string, geomType GeomType, fields Fields, features ...*Feature) *Layer {
	t.Helper()
	mem := CreateMemoryLayer(name, geomType, "EPSG:4326", fields)
	for _, f := range features {
		if err := mem.AddFeature(f); err != nil {
			t.Fatalf("添加要素失败: %v", err)
		}
	}
	return mem.Layer()
}

// overlapLayers A有2个要素，B有3个要素：A1与B1、B2相交，A2只与B3相交，B完全覆盖A的范围
func overlapLayers(t *testing.T) (*Layer, *Layer) {
	t.Helper()
	fieldsA := Fields{{Name: "name", Type: FieldTypeString}, {Name: "code", Type: FieldTypeInteger}}
	fieldsB := Fields{{Name: "name", Type: FieldTypeString}, {Name: "class", Type: FieldTypeString}}

	layerA := testLayer(t, "a", GeomPolygon, fieldsA,
		NewFeature(1, square(0, 0, 4, 4), "a1", 10),
		NewFeature(2, square(10, 0, 14, 4), "a2", 20),
	)
	layerB := testLayer(t, "b", GeomPolygon, fieldsB,
		NewFeature(1, square(-1, -1, 2, 5), "b1", "x"),
		NewFeature(2, square(2, -1, 5, 5), "b2", "y"),
		NewFeature(3, square(9, -1, 15, 5), "b3", "z"),
	)
	return layerA, layerB
}

func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func assertBBox(t *testing.T, got BoundingBox, minX, minY, maxX, maxY float64) {
	t.Helper()
	if !approxEqual(got.MinX, minX) || !approxEqual(got.MinY, minY) ||
		!approxEqual(got.MaxX, maxX) || !approxEqual(got.MaxY, maxY) {
		t.Errorf("外包矩形 = %s, want BBOX(%g %g, %g %g)", got, minX, minY, maxX, maxY)
	}
}
