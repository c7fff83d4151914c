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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 跳过原因
const (
	skipNullGeometry      = "null_geometry"
	skipGeometryError     = "geometry_error"
	skipEmptyIntersection = "empty_intersection"
	skipIncompatibleType  = "incompatible_type"
	skipWriteError        = "write_error"
)

// OverlayMetrics 叠加分析的Prometheus指标。nil值可安全调用，不记录任何数据
type OverlayMetrics struct {
	processed *prometheus.CounterVec
	written   *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewOverlayMetrics 创建指标并注册到reg，reg为nil时只创建不注册
func NewOverlayMetrics(namespace string, reg prometheus.Registerer) *OverlayMetrics {
	m := &OverlayMetrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_processed_total",
			Help:      "Input features processed by overlay operations.",
		}, []string{"operation"}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_written_total",
			Help:      "Output features written by overlay operations.",
		}, []string{"operation"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_skipped_total",
			Help:      "Features or feature pairs skipped, by reason.",
		}, []string{"operation", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of overlay operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.processed, m.written, m.skipped, m.duration)
	}
	return m
}

func (m *OverlayMetrics) incProcessed(operation string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(operation).Inc()
}

func (m *OverlayMetrics) incWritten(operation string) {
	if m == nil {
		return
	}
	m.written.WithLabelValues(operation).Inc()
}

func (m *OverlayMetrics) incSkipped(operation, reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(operation, reason).Inc()
}

func (m *OverlayMetrics) observeDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}
