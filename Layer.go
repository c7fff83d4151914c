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

	"github.com/rs/zerolog"
)

var (
	// ErrNilLayer 图层为空
	ErrNilLayer = errors.New("图层为空")
	// ErrNoDataProvider 图层没有可用的数据源
	ErrNoDataProvider = errors.New("图层没有可用的数据源")
)

// DataProvider 要素数据源
type DataProvider interface {
	// Fields 属性字段定义
	Fields() Fields
	// GeometryType 图层几何类型
	GeometryType() GeomType
	// CRS 坐标参考系标识，例如 EPSG:4326
	CRS() string
	// Encoding 属性文本编码
	Encoding() string
	// Extent 全部要素的合并外包矩形
	Extent() BoundingBox
	// FeatureCount 要素总数
	FeatureCount() int
	// GetFeatures 按数据源顺序遍历要素，filter非空时只返回外包矩形与其相交的要素。
	// fn返回false时停止遍历。
	GetFeatures(filter *BoundingBox, fn func(f *Feature) bool) error
	// FeatureByID 按ID获取要素
	FeatureByID(id int64) (*Feature, bool)
}

// Layer 矢量图层：数据源加上当前选择集
type Layer struct {
	name     string
	provider DataProvider
	selected []int64
	inSel    map[int64]struct{}
}

// NewLayer 创建图层
func NewLayer(name string, provider DataProvider) *Layer {
	return &Layer{name: name, provider: provider, inSel: make(map[int64]struct{})}
}

// GetLayerName 获取图层名称
func (l *Layer) GetLayerName() string {
	if l == nil {
		return ""
	}
	return l.name
}

// DataProvider 获取数据源
func (l *Layer) DataProvider() DataProvider {
	if l == nil {
		return nil
	}
	return l.provider
}

// GetFeatureCount 获取要素数量
func (l *Layer) GetFeatureCount() int {
	if l == nil || l.provider == nil {
		return 0
	}
	return l.provider.FeatureCount()
}

// Select 将要素加入选择集，保持加入顺序，重复ID忽略
func (l *Layer) Select(ids ...int64) {
	if l.inSel == nil {
		l.inSel = make(map[int64]struct{})
	}
	for _, id := range ids {
		if _, ok := l.inSel[id]; ok {
			continue
		}
		l.inSel[id] = struct{}{}
		l.selected = append(l.selected, id)
	}
}

// RemoveSelection 清空选择集
func (l *Layer) RemoveSelection() {
	l.selected = nil
	l.inSel = make(map[int64]struct{})
}

// SelectedFeatureIDs 返回选择集ID副本
func (l *Layer) SelectedFeatureIDs() []int64 {
	if l == nil {
		return nil
	}
	out := make([]int64, len(l.selected))
	copy(out, l.selected)
	return out
}

// SelectedFeatureCount 选择集大小
func (l *Layer) SelectedFeatureCount() int {
	if l == nil {
		return 0
	}
	return len(l.selected)
}

// FeatureAtID 从数据源按ID获取要素
func (l *Layer) FeatureAtID(id int64) (*Feature, bool) {
	if l == nil || l.provider == nil {
		return nil, false
	}
	return l.provider.FeatureByID(id)
}

// sourceCount 要处理的要素数：选择集大小或全部要素数
func (l *Layer) sourceCount(onlySelected bool) int {
	if onlySelected {
		return l.SelectedFeatureCount()
	}
	return l.provider.FeatureCount()
}

// iterate 遍历选择集（逐个按ID获取，不存在的ID跳过）或全部要素
func (l *Layer) iterate(onlySelected bool, filter *BoundingBox, fn func(f *Feature) bool) error {
	if !onlySelected {
		return l.provider.GetFeatures(filter, fn)
	}
	for _, id := range l.SelectedFeatureIDs() {
		f, ok := l.provider.FeatureByID(id)
		if !ok {
			continue
		}
		if filter != nil && !f.Geometry.BoundingBox().Intersects(*filter) {
			continue
		}
		if !fn(f) {
			return nil
		}
	}
	return nil
}

// validateLayer 检查图层和数据源是否可用
func validateLayer(layer *Layer) error {
	if layer == nil {
		return ErrNilLayer
	}
	if layer.provider == nil {
		return fmt.Errorf("图层 %s: %w", layer.name, ErrNoDataProvider)
	}
	return nil
}

// PrintLayerInfo 输出图层信息
func (l *Layer) PrintLayerInfo(logger zerolog.Logger) {
	if err := validateLayer(l); err != nil {
		logger.Warn().Err(err).Msg("图层无效")
		return
	}
	p := l.provider
	logger.Info().
		Str("layer", l.name).
		Str("geometry_type", p.GeometryType().String()).
		Str("crs", p.CRS()).
		Str("encoding", p.Encoding()).
		Int("feature_count", p.FeatureCount()).
		Int("selected", l.SelectedFeatureCount()).
		Strs("fields", p.Fields().Names()).
		Stringer("extent", p.Extent()).
		Msg("图层信息")
}
