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

// performClip 裁剪分析：B图层要素全部读入内存，A图层要素按B的范围预筛选后，
// 依次与每个裁剪要素求交。中途结果为空则该要素不输出。
func (a *OverlayAnalyzer) performClip(result *OverlayResult, layerA, layerB *Layer, output string,
	onlySelected bool, progress ProgressReporter, log zerolog.Logger) error {

	if err := validateLayer(layerA); err != nil {
		return fmt.Errorf("输入图层无效: %w", err)
	}
	if err := validateLayer(layerB); err != nil {
		return fmt.Errorf("裁剪图层无效: %w", err)
	}
	dpA := layerA.DataProvider()

	spec := SinkSpec{
		Fields:       dpA.Fields(),
		GeometryType: dpA.GeometryType(),
		CRS:          dpA.CRS(),
		Encoding:     dpA.Encoding(),
	}

	clipFeatures, extent, err := loadClipFeatures(layerB, onlySelected)
	if err != nil {
		return fmt.Errorf("读取裁剪图层失败: %v", err)
	}
	log.Debug().Int("clip_features", len(clipFeatures)).Stringer("extent", extent).Msg("裁剪要素已读入")

	sink, err := a.createSink(output, spec)
	if err != nil {
		return err
	}
	writer := a.newFeatureWriter(sink, spec, result, log)

	total := layerA.sourceCount(onlySelected)
	progress.SetMaximum(total)

	var iterErr error
	if len(clipFeatures) == 0 {
		log.Warn().Msg("裁剪图层没有带几何的要素，不输出任何结果")
	} else {
		iterErr = layerA.iterate(onlySelected, &extent, func(f *Feature) bool {
			progress.SetValue(result.Processed)
			if progress.WasCanceled() {
				result.Canceled = true
				return false
			}
			clipFeature(f, clipFeatures, len(spec.Fields), writer)
			writer.processed()
			return true
		})
	}
	progress.SetValue(total)

	closeErr := sink.Close()
	if iterErr != nil {
		return fmt.Errorf("遍历输入图层失败: %v", iterErr)
	}
	if closeErr != nil {
		return fmt.Errorf("关闭输出图层失败: %v", closeErr)
	}
	if result.Canceled {
		log.Warn().Int("processed", result.Processed).Int("total", total).Msg("裁剪分析被用户取消")
	}
	return nil
}

// loadClipFeatures 读取裁剪图层全部（或选中的）要素，丢弃没有几何的要素，并计算合并范围
func loadClipFeatures(layer *Layer, onlySelected bool) ([]*Feature, BoundingBox, error) {
	var features []*Feature
	extent := EmptyBoundingBox()
	err := layer.iterate(onlySelected, nil, func(f *Feature) bool {
		if !f.HasGeometry() {
			return true
		}
		features = append(features, f)
		extent = extent.Extend(f.Geometry.BoundingBox())
		return true
	})
	return features, extent, err
}

// clipFeature 用裁剪要素依次折叠求交，每一步的结果替换上一步的几何
func clipFeature(f *Feature, clipFeatures []*Feature, numFields int, writer *featureWriter) {
	if !f.HasGeometry() {
		writer.skip(skipNullGeometry)
		return
	}

	running := f.Geometry
	for _, clip := range clipFeatures {
		next, ok, err := running.Intersection(clip.Geometry)
		if err != nil {
			writer.log.Debug().Err(err).Int64("fid", f.ID).Int64("clip_fid", clip.ID).Msg("裁剪运算失败，跳过")
			writer.skip(skipGeometryError)
			return
		}
		if !ok {
			writer.skip(skipEmptyIntersection)
			return
		}
		running = next
	}

	writer.write(running, f.Attributes.resize(numFields))
}
