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

	"github.com/rs/zerolog"
)

// performIntersection 相交分析的两个阶段：先为B图层建立空间索引，再逐个处理A图层要素
func (a *OverlayAnalyzer) performIntersection(result *OverlayResult, layerA, layerB *Layer, output string,
	onlySelected bool, progress ProgressReporter, log zerolog.Logger) error {

	if err := validateLayer(layerA); err != nil {
		return fmt.Errorf("输入图层无效: %w", err)
	}
	if err := validateLayer(layerB); err != nil {
		return fmt.Errorf("叠加图层无效: %w", err)
	}
	dpA, dpB := layerA.DataProvider(), layerB.DataProvider()

	if a.Options.StrictDimensions {
		if err := ValidateDimensions(dpA.GeometryType(), dpB.GeometryType()); err != nil {
			return err
		}
	}

	fields, err := CombineFields(dpA.Fields(), dpB.Fields(), a.Options.FieldStrategy)
	if err != nil {
		return fmt.Errorf("合并字段失败: %v", err)
	}
	spec := SinkSpec{
		Fields:       fields,
		GeometryType: dpA.GeometryType(),
		CRS:          dpA.CRS(),
		Encoding:     dpA.Encoding(),
	}

	// 建索引阶段：一次读完B图层，之后索引只读
	index, err := BuildSpatialIndex(layerB, onlySelected)
	if err != nil {
		return fmt.Errorf("建立空间索引失败: %v", err)
	}
	log.Debug().Int("indexed", index.Len()).Msg("空间索引已建立")

	sink, err := a.createSink(output, spec)
	if err != nil {
		return err
	}
	writer := a.newFeatureWriter(sink, spec, result, log)
	intersector := &featureIntersector{
		layer:     layerB,
		index:     index,
		strategy:  a.Options.FieldStrategy,
		widthA:    len(dpA.Fields()),
		widthB:    len(dpB.Fields()),
		numFields: len(fields),
		writer:    writer,
		log:       log,
	}

	// 流式处理阶段
	total := layerA.sourceCount(onlySelected)
	progress.SetMaximum(total)
	iterErr := layerA.iterate(onlySelected, nil, func(f *Feature) bool {
		progress.SetValue(result.Processed)
		if progress.WasCanceled() {
			result.Canceled = true
			return false
		}
		intersector.intersectFeature(f)
		writer.processed()
		return true
	})
	progress.SetValue(total)

	closeErr := sink.Close()
	if iterErr != nil {
		return fmt.Errorf("遍历输入图层失败: %v", iterErr)
	}
	if closeErr != nil {
		return fmt.Errorf("关闭输出图层失败: %v", closeErr)
	}
	if result.Canceled {
		log.Warn().Int("processed", result.Processed).Int("total", total).Msg("相交分析被用户取消")
	}
	return nil
}

// featureIntersector 对单个输入要素查询索引、精确判断并输出每一对相交结果
type featureIntersector struct {
	layer     *Layer
	index     *SpatialIndex
	strategy  FieldMergeStrategy
	widthA    int
	widthB    int
	numFields int
	writer    *featureWriter
	log       zerolog.Logger
}

// intersectFeature 每个与f真实相交的B要素各产生一个输出要素；f没有几何时不输出
func (fi *featureIntersector) intersectFeature(f *Feature) {
	if !f.HasGeometry() {
		fi.writer.skip(skipNullGeometry)
		return
	}

	for _, id := range fi.index.Intersects(f.Geometry.BoundingBox()) {
		overlay, ok := fi.layer.FeatureAtID(id)
		if !ok || !overlay.HasGeometry() {
			continue
		}
		if !f.Geometry.Intersects(overlay.Geometry) {
			continue
		}

		geometry, ok, err := f.Geometry.Intersection(overlay.Geometry)
		if err != nil {
			fi.log.Debug().Err(err).Int64("fid_a", f.ID).Int64("fid_b", id).Msg("相交运算失败，跳过")
			fi.writer.skip(skipGeometryError)
			continue
		}
		if !ok {
			fi.log.Debug().Int64("fid_a", f.ID).Int64("fid_b", id).Msg("相交结果为空，跳过")
			fi.writer.skip(skipEmptyIntersection)
			continue
		}

		// 记录长度与图层字段数不一致时先补齐，B的值才能落在合并后字段表中的正确位置
		attributes := CombineAttributes(f.Attributes.resize(fi.widthA), overlay.Attributes.resize(fi.widthB), fi.strategy, fi.numFields)
		fi.writer.write(geometry, attributes)
	}
}
