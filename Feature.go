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

// Feature 要素：稳定的整数ID、可为空的几何和按字段位置排列的属性
type Feature struct {
	ID         int64
	Geometry   *Geometry
	Attributes Attributes
}

// NewFeature 创建要素
func NewFeature(id int64, geometry *Geometry, attributes ...any) *Feature {
	return &Feature{ID: id, Geometry: geometry, Attributes: Attributes(attributes)}
}

// IsValid 检查要素是否有效
func (f *Feature) IsValid() bool {
	return f != nil
}

// HasGeometry 要素是否带有非空几何
func (f *Feature) HasGeometry() bool {
	return f != nil && !f.Geometry.IsEmpty()
}

// Clone 复制要素。几何不可变，副本与原要素共享同一几何值
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	return &Feature{ID: f.ID, Geometry: f.Geometry, Attributes: f.Attributes.Clone()}
}

// WithGeometry 返回替换了几何的副本
func (f *Feature) WithGeometry(geometry *Geometry) *Feature {
	out := f.Clone()
	out.Geometry = geometry
	return out
}

// FieldValue 按字段名读取属性值
func (f *Feature) FieldValue(fields Fields, name string) (any, bool) {
	if f == nil {
		return nil, false
	}
	idx := fields.IndexOf(name)
	if idx < 0 || idx >= len(f.Attributes) {
		return nil, false
	}
	return f.Attributes[idx], true
}
