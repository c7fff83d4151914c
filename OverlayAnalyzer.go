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
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// 叠加操作名称
const (
	OperationIntersection = "intersection"
	OperationClip         = "clip"
)

// OverlayOptions 叠加分析选项
type OverlayOptions struct {
	// FieldStrategy 相交分析输出字段的合并策略
	FieldStrategy FieldMergeStrategy
	// CoerceGeometryType 输出前把结果几何转换为输出图层的几何类型，
	// 维度不符的部分丢弃，输出为单部件类型时拆分多部件结果
	CoerceGeometryType bool
	// StrictDimensions 相交分析要求输入图层维度不高于叠加图层
	StrictDimensions bool
	// SinkFactory 输出目标工厂，默认按扩展名写GeoJSON或SQLite
	SinkFactory SinkFactory
}

// OverlayResult 一次叠加分析的结果统计
type OverlayResult struct {
	TaskID      string
	Operation   string
	Output      string
	Processed   int
	Written     int
	Skipped     int
	Canceled    bool
	WriteErrors []string
	Duration    time.Duration
}

// OverlayAnalyzer 矢量叠加分析器
type OverlayAnalyzer struct {
	Options OverlayOptions

	logger  zerolog.Logger
	metrics *OverlayMetrics
	tasks   *TaskStore
}

// AnalyzerOption 分析器构造选项
type AnalyzerOption func(*OverlayAnalyzer)

func WithLogger(logger zerolog.Logger) AnalyzerOption {
	return func(a *OverlayAnalyzer) { a.logger = logger }
}

func WithMetrics(metrics *OverlayMetrics) AnalyzerOption {
	return func(a *OverlayAnalyzer) { a.metrics = metrics }
}

func WithTaskStore(store *TaskStore) AnalyzerOption {
	return func(a *OverlayAnalyzer) { a.tasks = store }
}

func WithOptions(options OverlayOptions) AnalyzerOption {
	return func(a *OverlayAnalyzer) { a.Options = options }
}

// NewOverlayAnalyzer 创建分析器，默认不输出日志、不记录指标
func NewOverlayAnalyzer(opts ...AnalyzerOption) *OverlayAnalyzer {
	a := &OverlayAnalyzer{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Intersection 相交分析：A图层每个要素与B图层每个真实相交的要素生成一个输出要素。
// 返回是否成功；用户取消不算失败。
func (a *OverlayAnalyzer) Intersection(layerA, layerB *Layer, output string, onlySelected bool, p ProgressReporter) bool {
	_, err := a.RunIntersection(layerA, layerB, output, onlySelected, p)
	return err == nil
}

// Clip 裁剪分析：A图层要素依次与B图层全部要素求交，保留A的属性。
// 返回是否成功；用户取消不算失败。
func (a *OverlayAnalyzer) Clip(layerA, layerB *Layer, output string, onlySelected bool, p ProgressReporter) bool {
	_, err := a.RunClip(layerA, layerB, output, onlySelected, p)
	return err == nil
}

// RunIntersection 执行相交分析并返回结果统计
func (a *OverlayAnalyzer) RunIntersection(layerA, layerB *Layer, output string, onlySelected bool, p ProgressReporter) (*OverlayResult, error) {
	return a.run(OperationIntersection, layerA, layerB, output, onlySelected, func(result *OverlayResult, log zerolog.Logger) error {
		return a.performIntersection(result, layerA, layerB, output, onlySelected, progressOrNop(p), log)
	})
}

// RunClip 执行裁剪分析并返回结果统计
func (a *OverlayAnalyzer) RunClip(layerA, layerB *Layer, output string, onlySelected bool, p ProgressReporter) (*OverlayResult, error) {
	return a.run(OperationClip, layerA, layerB, output, onlySelected, func(result *OverlayResult, log zerolog.Logger) error {
		return a.performClip(result, layerA, layerB, output, onlySelected, progressOrNop(p), log)
	})
}

func (a *OverlayAnalyzer) run(operation string, layerA, layerB *Layer, output string, onlySelected bool,
	exec func(result *OverlayResult, log zerolog.Logger) error) (*OverlayResult, error) {

	start := time.Now()
	result := &OverlayResult{
		TaskID:    uuid.New().String(),
		Operation: operation,
		Output:    output,
	}
	log := a.logger.With().Str("task_id", result.TaskID).Str("operation", operation).Logger()

	if a.tasks != nil {
		task := &OverlayTask{
			TaskID:       result.TaskID,
			Operation:    operation,
			InputLayer:   layerA.GetLayerName(),
			MethodLayer:  layerB.GetLayerName(),
			Output:       output,
			OnlySelected: onlySelected,
			Strategy:     a.Options.FieldStrategy.String(),
		}
		if err := a.tasks.Begin(task); err != nil {
			log.Warn().Err(err).Msg("记录任务失败")
		}
	}

	log.Info().
		Str("input", layerA.GetLayerName()).
		Str("method", layerB.GetLayerName()).
		Str("output", output).
		Bool("only_selected", onlySelected).
		Msg("开始叠加分析")

	err := exec(result, log)
	result.Duration = time.Since(start)
	a.metrics.observeDuration(operation, result.Duration)

	if a.tasks != nil {
		if ferr := a.tasks.Finish(result, err); ferr != nil {
			log.Warn().Err(ferr).Msg("更新任务状态失败")
		}
	}

	if err != nil {
		log.Error().Err(err).Msg("叠加分析失败")
		return result, err
	}
	log.Info().
		Int("processed", result.Processed).
		Int("written", result.Written).
		Int("skipped", result.Skipped).
		Bool("canceled", result.Canceled).
		Int("write_errors", len(result.WriteErrors)).
		Dur("duration", result.Duration).
		Msg("叠加分析完成")
	return result, nil
}

// createSink 在全部前置条件检查通过之后才调用，失败时不会留下输出文件
func (a *OverlayAnalyzer) createSink(output string, spec SinkSpec) (FeatureSink, error) {
	factory := a.Options.SinkFactory
	if factory == nil {
		factory = NewFileGeoWriter
	}
	sink, err := factory(output, spec)
	if err != nil {
		return nil, fmt.Errorf("创建输出图层失败: %w", err)
	}
	return sink, nil
}

// ValidateDimensions 输入图层维度不能高于叠加图层维度
func ValidateDimensions(input, method GeomType) error {
	if input.Dimension() < 0 || method.Dimension() < 0 {
		return nil
	}
	if input.Dimension() > method.Dimension() {
		return fmt.Errorf("输入图层维度(%s)必须不高于叠加图层维度(%s)", input, method)
	}
	return nil
}

// ==================== 结果写出 ====================

// featureWriter 将结果要素写入输出目标，负责类型转换、编号和统计
type featureWriter struct {
	sink      FeatureSink
	operation string
	outType   GeomType
	coerce    bool
	nextID    int64
	result    *OverlayResult
	metrics   *OverlayMetrics
	log       zerolog.Logger
}

func (a *OverlayAnalyzer) newFeatureWriter(sink FeatureSink, spec SinkSpec, result *OverlayResult, log zerolog.Logger) *featureWriter {
	return &featureWriter{
		sink:      sink,
		operation: result.Operation,
		outType:   spec.GeometryType,
		coerce:    a.Options.CoerceGeometryType,
		nextID:    1,
		result:    result,
		metrics:   a.metrics,
		log:       log,
	}
}

func (w *featureWriter) skip(reason string) {
	w.result.Skipped++
	w.metrics.incSkipped(w.operation, reason)
}

func (w *featureWriter) processed() {
	w.result.Processed++
	w.metrics.incProcessed(w.operation)
}

// write 写出一个结果要素。写入失败只记录错误，不中断分析
func (w *featureWriter) write(geometry *Geometry, attributes Attributes) {
	geometries := []*Geometry{geometry}
	if w.coerce {
		geometries = coerceGeometry(geometry, w.outType)
		if len(geometries) == 0 {
			w.log.Debug().Str("result_type", geometry.Type().String()).Str("output_type", w.outType.String()).Msg("跳过类型不兼容的结果")
			w.skip(skipIncompatibleType)
			return
		}
	}

	for _, g := range geometries {
		f := &Feature{ID: w.nextID, Geometry: g, Attributes: attributes.Clone()}
		if err := w.sink.AddFeature(f); err != nil {
			w.result.WriteErrors = append(w.result.WriteErrors, err.Error())
			w.skip(skipWriteError)
			continue
		}
		w.nextID++
		w.result.Written++
		w.metrics.incWritten(w.operation)
	}
}

// coerceGeometry 将结果几何转换为输出类型：
// 只保留与输出类型维度相同的部件；输出为单部件类型时逐个部件输出，否则合并为多部件几何。
func coerceGeometry(g *Geometry, outType GeomType) []*Geometry {
	if g.IsEmpty() {
		return nil
	}
	if outType == GeomUnknown || outType == GeomCollection {
		return []*Geometry{g}
	}
	if g.Type() == outType {
		return []*Geometry{g}
	}

	single := outType.SingleType()
	var parts []*Geometry
	for _, part := range g.Parts() {
		if part.Type() == single {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	if !outType.IsMulti() {
		return parts
	}
	return []*Geometry{combineParts(parts, outType)}
}

func combineParts(parts []*Geometry, outType GeomType) *Geometry {
	switch outType {
	case GeomMultiPoint:
		mp := make(orb.MultiPoint, 0, len(parts))
		for _, p := range parts {
			mp = append(mp, p.Orb().(orb.Point))
		}
		return NewGeometry(mp)
	case GeomMultiLineString:
		mls := make(orb.MultiLineString, 0, len(parts))
		for _, p := range parts {
			mls = append(mls, p.Orb().(orb.LineString))
		}
		return NewGeometry(mls)
	default:
		mp := make(orb.MultiPolygon, 0, len(parts))
		for _, p := range parts {
			mp = append(mp, p.Orb().(orb.Polygon))
		}
		return NewGeometry(mp)
	}
}

// String 结果摘要
func (r *OverlayResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: 处理 %d, 输出 %d, 跳过 %d", r.Operation, r.Processed, r.Written, r.Skipped)
	if r.Canceled {
		b.WriteString(", 已取消")
	}
	if len(r.WriteErrors) > 0 {
		fmt.Fprintf(&b, ", 写入错误 %d", len(r.WriteErrors))
	}
	return b.String()
}
