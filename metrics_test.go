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
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOverlayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOverlayMetrics("gooverlay", reg)

	m.incProcessed(OperationClip)
	m.incProcessed(OperationClip)
	m.incSkipped(OperationClip, skipEmptyIntersection)
	m.observeDuration(OperationClip, 20*time.Millisecond)

	if got := testutil.ToFloat64(m.processed.WithLabelValues(OperationClip)); got != 2 {
		t.Errorf("processed = %v, want 2", got)
	}

	expected := `
# HELP gooverlay_features_skipped_total Features or feature pairs skipped, by reason.
# TYPE gooverlay_features_skipped_total counter
gooverlay_features_skipped_total{operation="clip",reason="empty_intersection"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "gooverlay_features_skipped_total"); err != nil {
		t.Errorf("skipped指标不符: %v", err)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("duration序列数 = %d, want 1", n)
	}
}

func TestOverlayMetrics_Nil(t *testing.T) {
	var m *OverlayMetrics
	m.incProcessed(OperationIntersection)
	m.incWritten(OperationIntersection)
	m.incSkipped(OperationIntersection, skipWriteError)
	m.observeDuration(OperationIntersection, time.Second)
}

func TestOverlayMetrics_RecordedByAnalyzer(t *testing.T) {
	layerA, layerB := overlapLayers(t)
	reg := prometheus.NewRegistry()
	metrics := NewOverlayMetrics("t", reg)
	a := memoryAnalyzer(NewMemoryStore(), WithMetrics(metrics))

	if _, err := a.RunClip(layerA, layerB, "memory:x", false, nil); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(metrics.skipped.WithLabelValues(OperationClip, skipEmptyIntersection)); got != 2 {
		t.Errorf("clip empty_intersection = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(metrics.duration, "t_operation_duration_seconds"); n != 1 {
		t.Errorf("duration序列数 = %d, want 1", n)
	}
}
