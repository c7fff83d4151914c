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
	"sync"
)

// DefaultEncoding 默认属性编码
const DefaultEncoding = "UTF-8"

// MemoryLayer 内存图层：既是数据源也是输出目标
type MemoryLayer struct {
	name     string
	geomType GeomType
	crs      string
	encoding string
	fields   Fields

	features []*Feature
	byID     map[int64]int
	nextID   int64
}

// CreateMemoryLayer 创建内存图层
func CreateMemoryLayer(layerName string, geomType GeomType, crs string, fields Fields) *MemoryLayer {
	return &MemoryLayer{
		name:     layerName,
		geomType: geomType,
		crs:      crs,
		encoding: DefaultEncoding,
		fields:   fields.Clone(),
		byID:     make(map[int64]int),
		nextID:   1,
	}
}

// SetEncoding 设置属性编码
func (m *MemoryLayer) SetEncoding(encoding string) {
	m.encoding = encoding
}

// AddFeature 添加要素副本。ID未设置(<=0)或已被占用时分配新ID
func (m *MemoryLayer) AddFeature(f *Feature) error {
	if f == nil {
		return fmt.Errorf("要素为空")
	}
	stored := f.Clone()
	if _, used := m.byID[stored.ID]; stored.ID <= 0 || used {
		stored.ID = m.nextID
	}
	if stored.ID >= m.nextID {
		m.nextID = stored.ID + 1
	}
	stored.Attributes = stored.Attributes.resize(len(m.fields))
	m.byID[stored.ID] = len(m.features)
	m.features = append(m.features, stored)
	return nil
}

// Close 内存图层无需释放资源
func (m *MemoryLayer) Close() error {
	return nil
}

// Layer 以该内存图层为数据源创建图层
func (m *MemoryLayer) Layer() *Layer {
	return NewLayer(m.name, m)
}

// Features 按添加顺序返回全部要素
func (m *MemoryLayer) Features() []*Feature {
	out := make([]*Feature, len(m.features))
	copy(out, m.features)
	return out
}

func (m *MemoryLayer) Name() string { return m.name }

func (m *MemoryLayer) Fields() Fields { return m.fields.Clone() }

func (m *MemoryLayer) GeometryType() GeomType { return m.geomType }

func (m *MemoryLayer) CRS() string { return m.crs }

func (m *MemoryLayer) Encoding() string { return m.encoding }

func (m *MemoryLayer) FeatureCount() int { return len(m.features) }

func (m *MemoryLayer) Extent() BoundingBox {
	extent := EmptyBoundingBox()
	for _, f := range m.features {
		extent = extent.Extend(f.Geometry.BoundingBox())
	}
	return extent
}

func (m *MemoryLayer) GetFeatures(filter *BoundingBox, fn func(f *Feature) bool) error {
	for _, f := range m.features {
		if filter != nil && !f.Geometry.BoundingBox().Intersects(*filter) {
			continue
		}
		if !fn(f.Clone()) {
			return nil
		}
	}
	return nil
}

func (m *MemoryLayer) FeatureByID(id int64) (*Feature, bool) {
	idx, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return m.features[idx].Clone(), true
}

// MemoryStore 按位置名保存内存输出图层，其Create方法可作为SinkFactory使用
type MemoryStore struct {
	mu     sync.Mutex
	layers map[string]*MemoryLayer
}

// NewMemoryStore 创建内存输出仓库
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{layers: make(map[string]*MemoryLayer)}
}

// Create 按输出规格创建内存图层，同名位置会被覆盖
func (s *MemoryStore) Create(location string, spec SinkSpec) (FeatureSink, error) {
	name := strings.TrimPrefix(location, MemoryScheme)
	layer := CreateMemoryLayer(name, spec.GeometryType, spec.CRS, spec.Fields)
	if spec.Encoding != "" {
		layer.SetEncoding(spec.Encoding)
	}
	s.mu.Lock()
	s.layers[location] = layer
	s.mu.Unlock()
	return layer, nil
}

// Get 获取已创建的内存图层
func (s *MemoryStore) Get(location string) (*MemoryLayer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	layer, ok := s.layers[location]
	return layer, ok
}
