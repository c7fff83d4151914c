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
	"math"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/peterstace/simplefeatures/rtree"
)

// GeomType 几何类型，取值与WKB类型码一致
type GeomType int

const (
	GeomUnknown         GeomType = 0
	GeomPoint           GeomType = 1
	GeomLineString      GeomType = 2
	GeomPolygon         GeomType = 3
	GeomMultiPoint      GeomType = 4
	GeomMultiLineString GeomType = 5
	GeomMultiPolygon    GeomType = 6
	GeomCollection      GeomType = 7
)

func (t GeomType) String() string {
	switch t {
	case GeomPoint:
		return "Point"
	case GeomLineString:
		return "LineString"
	case GeomPolygon:
		return "Polygon"
	case GeomMultiPoint:
		return "MultiPoint"
	case GeomMultiLineString:
		return "MultiLineString"
	case GeomMultiPolygon:
		return "MultiPolygon"
	case GeomCollection:
		return "GeometryCollection"
	default:
		return "Unknown"
	}
}

// ParseGeomType 按名称解析几何类型，大小写不敏感
func ParseGeomType(name string) GeomType {
	for t := GeomPoint; t <= GeomCollection; t++ {
		if strings.EqualFold(t.String(), name) {
			return t
		}
	}
	return GeomUnknown
}

// SingleType 返回多部件类型对应的单部件类型
func (t GeomType) SingleType() GeomType {
	switch t {
	case GeomMultiPoint:
		return GeomPoint
	case GeomMultiLineString:
		return GeomLineString
	case GeomMultiPolygon:
		return GeomPolygon
	default:
		return t
	}
}

// MultiType 返回单部件类型对应的多部件类型
func (t GeomType) MultiType() GeomType {
	switch t {
	case GeomPoint:
		return GeomMultiPoint
	case GeomLineString:
		return GeomMultiLineString
	case GeomPolygon:
		return GeomMultiPolygon
	default:
		return t
	}
}

func (t GeomType) IsMulti() bool {
	return t == GeomMultiPoint || t == GeomMultiLineString || t == GeomMultiPolygon || t == GeomCollection
}

// Dimension 点=0 线=1 面=2，未知类型返回-1
func (t GeomType) Dimension() int {
	switch t.SingleType() {
	case GeomPoint:
		return 0
	case GeomLineString:
		return 1
	case GeomPolygon:
		return 2
	default:
		return -1
	}
}

// ==================== 外包矩形 ====================

// BoundingBox 轴对齐外包矩形
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyBoundingBox 返回空矩形，作为Extend的单位元
func EmptyBoundingBox() BoundingBox {
	return BoundingBox{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

func (b BoundingBox) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Valid 检查 min <= max 且坐标不含NaN
func (b BoundingBox) Valid() bool {
	if math.IsNaN(b.MinX) || math.IsNaN(b.MinY) || math.IsNaN(b.MaxX) || math.IsNaN(b.MaxY) {
		return false
	}
	return !b.IsEmpty()
}

// Intersects 判断两个矩形是否相交（边界接触也算相交）
func (b BoundingBox) Intersects(other BoundingBox) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return false
	}
	return b.MinX <= other.MaxX && other.MinX <= b.MaxX &&
		b.MinY <= other.MaxY && other.MinY <= b.MaxY
}

// Extend 返回同时包含两个矩形的最小矩形
func (b BoundingBox) Extend(other BoundingBox) BoundingBox {
	if other.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return other
	}
	return BoundingBox{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

func (b BoundingBox) String() string {
	if b.IsEmpty() {
		return "BBOX(EMPTY)"
	}
	return fmt.Sprintf("BBOX(%g %g, %g %g)", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

func (b BoundingBox) box() rtree.Box {
	return rtree.Box{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

func boundingBoxFromOrb(bound orb.Bound) BoundingBox {
	if bound.IsEmpty() {
		return EmptyBoundingBox()
	}
	return BoundingBox{MinX: bound.Min[0], MinY: bound.Min[1], MaxX: bound.Max[0], MaxY: bound.Max[1]}
}

// ==================== 几何对象 ====================

// GeometryError 几何引擎运算失败，携带自身的错误信息
type GeometryError struct {
	Op  string
	Err error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("几何运算 %s 失败: %v", e.Op, e.Err)
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}

// Geometry 不可变几何值。nil *Geometry 表示空几何（null）。
// 坐标与外包矩形由orb保存，精确谓词和叠加运算在首次需要时转换为simplefeatures几何。
type Geometry struct {
	g orb.Geometry

	once  sync.Once
	sf    geom.Geometry
	sfErr error
}

// NewGeometry 包装orb几何，Ring和Bound统一转换为Polygon
func NewGeometry(g orb.Geometry) *Geometry {
	switch v := g.(type) {
	case nil:
		return nil
	case orb.Ring:
		g = orb.Polygon{v}
	case orb.Bound:
		g = v.ToPolygon()
	}
	return &Geometry{g: g}
}

// GeometryFromWKT 从WKT文本创建几何
func GeometryFromWKT(text string) (*Geometry, error) {
	sf, err := geom.UnmarshalWKT(text)
	if err != nil {
		return nil, fmt.Errorf("解析WKT失败: %v", err)
	}
	return fromSimpleFeatures(sf)
}

// GeometryFromWKB 从WKB字节创建几何
func GeometryFromWKB(data []byte) (*Geometry, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("解析WKB失败: %v", err)
	}
	return NewGeometry(g), nil
}

func fromSimpleFeatures(sf geom.Geometry) (*Geometry, error) {
	g, err := wkb.Unmarshal(sf.AsBinary())
	if err != nil {
		return nil, &GeometryError{Op: "toOrb", Err: err}
	}
	out := NewGeometry(g)
	out.once.Do(func() { out.sf = sf })
	return out, nil
}

// Orb 返回底层orb几何
func (g *Geometry) Orb() orb.Geometry {
	if g == nil {
		return nil
	}
	return g.g
}

func (g *Geometry) Type() GeomType {
	if g == nil {
		return GeomUnknown
	}
	switch g.g.(type) {
	case orb.Point:
		return GeomPoint
	case orb.LineString:
		return GeomLineString
	case orb.Polygon:
		return GeomPolygon
	case orb.MultiPoint:
		return GeomMultiPoint
	case orb.MultiLineString:
		return GeomMultiLineString
	case orb.MultiPolygon:
		return GeomMultiPolygon
	case orb.Collection:
		return GeomCollection
	default:
		return GeomUnknown
	}
}

// Dimension 几何维度，集合取成员最大维度，空几何返回-1
func (g *Geometry) Dimension() int {
	if g.IsEmpty() {
		return -1
	}
	if c, ok := g.g.(orb.Collection); ok {
		dim := -1
		for _, member := range c {
			if d := NewGeometry(member).Dimension(); d > dim {
				dim = d
			}
		}
		return dim
	}
	return g.Type().Dimension()
}

func (g *Geometry) IsEmpty() bool {
	if g == nil || g.g == nil {
		return true
	}
	switch v := g.g.(type) {
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(v) == 0
	case orb.LineString:
		return len(v) == 0
	case orb.MultiLineString:
		return len(v) == 0
	case orb.Polygon:
		return len(v) == 0 || len(v[0]) == 0
	case orb.MultiPolygon:
		return len(v) == 0
	case orb.Collection:
		for _, member := range v {
			if !NewGeometry(member).IsEmpty() {
				return false
			}
		}
		return true
	}
	return g.g.Bound().IsEmpty()
}

// BoundingBox 几何外包矩形，空几何返回空矩形
func (g *Geometry) BoundingBox() BoundingBox {
	if g.IsEmpty() {
		return EmptyBoundingBox()
	}
	return boundingBoxFromOrb(g.g.Bound())
}

// WKB 导出WKB字节
func (g *Geometry) WKB() ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	data, err := wkb.Marshal(g.g)
	if err != nil {
		return nil, fmt.Errorf("导出WKB失败: %v", err)
	}
	return data, nil
}

// WKT 导出WKT文本
func (g *Geometry) WKT() string {
	if g == nil {
		return ""
	}
	return wkt.MarshalString(g.g)
}

func (g *Geometry) String() string {
	return g.WKT()
}

// Parts 多部件几何拆分为单部件，集合展开为成员，单部件几何返回自身
func (g *Geometry) Parts() []*Geometry {
	if g.IsEmpty() {
		return nil
	}
	var parts []*Geometry
	switch v := g.g.(type) {
	case orb.MultiPoint:
		for _, p := range v {
			parts = append(parts, NewGeometry(p))
		}
	case orb.MultiLineString:
		for _, ls := range v {
			parts = append(parts, NewGeometry(ls))
		}
	case orb.MultiPolygon:
		for _, p := range v {
			parts = append(parts, NewGeometry(p))
		}
	case orb.Collection:
		for _, member := range v {
			parts = append(parts, NewGeometry(member).Parts()...)
		}
	default:
		parts = append(parts, g)
	}
	return parts
}

func (g *Geometry) simple() (geom.Geometry, error) {
	g.once.Do(func() {
		data, err := wkb.Marshal(g.g)
		if err != nil {
			g.sfErr = &GeometryError{Op: "toWKB", Err: err}
			return
		}
		g.sf, err = geom.UnmarshalWKB(data)
		if err != nil {
			g.sfErr = &GeometryError{Op: "fromWKB", Err: err}
		}
	})
	return g.sf, g.sfErr
}

// Intersects 精确相交判断，任一方为空或几何无法解析时返回false
func (g *Geometry) Intersects(other *Geometry) bool {
	if g.IsEmpty() || other.IsEmpty() {
		return false
	}
	if !g.BoundingBox().Intersects(other.BoundingBox()) {
		return false
	}
	a, err := g.simple()
	if err != nil {
		return false
	}
	b, err := other.simple()
	if err != nil {
		return false
	}
	return geom.Intersects(a, b)
}

// Intersection 计算两个几何的交集。
// ok为false表示没有重叠（结果为空）；err非空表示几何引擎运算失败。
func (g *Geometry) Intersection(other *Geometry) (result *Geometry, ok bool, err error) {
	if g.IsEmpty() || other.IsEmpty() {
		return nil, false, nil
	}
	a, err := g.simple()
	if err != nil {
		return nil, false, err
	}
	b, err := other.simple()
	if err != nil {
		return nil, false, err
	}
	sf, err := geom.Intersection(a, b)
	if err != nil {
		return nil, false, &GeometryError{Op: "intersection", Err: err}
	}
	if sf.IsEmpty() {
		return nil, false, nil
	}
	result, err = fromSimpleFeatures(sf)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}
