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
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	overlay "github.com/GrainArc/GoOverlay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// environment 一次命令运行所需的配置、日志、指标和任务台账
type environment struct {
	cfg      *overlay.OverlayConfig
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *overlay.OverlayMetrics
	tasks    *overlay.TaskStore
}

func newEnvironment(stderr io.Writer) (*environment, error) {
	cfg, err := overlay.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logConsole {
		cfg.Log.Console = true
	}
	if taskDBPath != "" {
		cfg.TaskDB = taskDBPath
	}

	env := &environment{
		cfg:      cfg,
		logger:   overlay.BuildLogger(cfg.Log, stderr),
		registry: prometheus.NewRegistry(),
	}
	env.metrics = overlay.NewOverlayMetrics(cfg.MetricsNamespace, env.registry)

	if cfg.TaskDB != "" {
		env.tasks, err = overlay.OpenTaskStore(cfg.TaskDB)
		if err != nil {
			return nil, err
		}
	}
	return env, nil
}

func (e *environment) close() {
	if e.tasks != nil {
		if err := e.tasks.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("关闭任务库失败")
		}
	}
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, e.registry); err != nil {
			e.logger.Warn().Err(err).Str("file", metricsFile).Msg("写出指标失败")
		}
	}
}

// parseIDs 解析逗号分隔的要素ID列表
func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("无效的要素ID: %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// selectAll 选择图层全部要素
func selectAll(layer *overlay.Layer) error {
	var ids []int64
	err := layer.DataProvider().GetFeatures(nil, func(f *overlay.Feature) bool {
		ids = append(ids, f.ID)
		return true
	})
	if err != nil {
		return err
	}
	layer.Select(ids...)
	return nil
}

func printResult(w io.Writer, result *overlay.OverlayResult) {
	titleColor.Fprintf(w, "%s 完成\n", result.Operation)
	fmt.Fprintf(w, "  任务ID:   %s\n", result.TaskID)
	fmt.Fprintf(w, "  输出:     %s\n", result.Output)
	fmt.Fprintf(w, "  处理要素: %d\n", result.Processed)
	successColor.Fprintf(w, "  输出要素: %d\n", result.Written)
	fmt.Fprintf(w, "  跳过:     %d\n", result.Skipped)
	fmt.Fprintf(w, "  耗时:     %s\n", result.Duration)
	if result.Canceled {
		warnColor.Fprintln(w, "  已被用户取消，输出只包含已处理的要素")
	}
	for _, msg := range result.WriteErrors {
		errorColor.Fprintf(w, "  写入错误: %s\n", msg)
	}
}
