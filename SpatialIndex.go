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
	"sort"

	"github.com/peterstace/simplefeatures/rtree"
)

// ErrIndexFrozen 索引已开始查询，不能再插入要素
var ErrIndexFrozen = errors.New("空间索引已冻结，不能再插入要素")

// SpatialIndex 要素外包矩形的R树索引。
// 先插入全部要素，第一次查询时批量构建并冻结，之后只读。
type SpatialIndex struct {
	items  []rtree.BulkItem
	ids    []int64
	tree   *rtree.RTree
	frozen bool
}

// NewSpatialIndex 创建空索引
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{}
}

// InsertFeature 插入要素的外包矩形。没有几何的要素不入索引，返回false
func (s *SpatialIndex) InsertFeature(f *Feature) (bool, error) {
	if s.frozen {
		return false, ErrIndexFrozen
	}
	if !f.HasGeometry() {
		return false, nil
	}
	bbox := f.Geometry.BoundingBox()
	if !bbox.Valid() {
		return false, nil
	}
	s.items = append(s.items, rtree.BulkItem{Box: bbox.box(), RecordID: len(s.ids)})
	s.ids = append(s.ids, f.ID)
	return true, nil
}

// Len 已入索引的要素数
func (s *SpatialIndex) Len() int {
	return len(s.ids)
}

// Freeze 构建R树，之后索引只读
func (s *SpatialIndex) Freeze() {
	if s.frozen {
		return
	}
	s.frozen = true
	if len(s.items) > 0 {
		s.tree = rtree.BulkLoad(s.items)
	}
	s.items = nil
}

// Intersects 返回外包矩形与box相交的要素ID，按插入顺序排列。
// 结果是真实几何相交的超集，调用方还需做精确判断。
func (s *SpatialIndex) Intersects(box BoundingBox) []int64 {
	s.Freeze()
	if s.tree == nil || !box.Valid() {
		return nil
	}
	var records []int
	_ = s.tree.RangeSearch(box.box(), func(recordID int) error {
		records = append(records, recordID)
		return nil
	})
	sort.Ints(records)

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = s.ids[r]
	}
	return ids
}

// BuildSpatialIndex 将图层要素（选择集或全部）读入新索引并冻结
func BuildSpatialIndex(layer *Layer, onlySelected bool) (*SpatialIndex, error) {
	if err := validateLayer(layer); err != nil {
		return nil, err
	}
	index := NewSpatialIndex()
	var insertErr error
	err := layer.iterate(onlySelected, nil, func(f *Feature) bool {
		if _, insertErr = index.InsertFeature(f); insertErr != nil {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if insertErr != nil {
		return nil, insertErr
	}
	index.Freeze()
	return index, nil
}
