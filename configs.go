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
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OverlayConfig 叠加分析配置
type OverlayConfig struct {
	XMLName            xml.Name  `xml:"config" yaml:"-"`
	Log                LogConfig `xml:"log" yaml:"log"`
	FieldStrategy      string    `xml:"fieldStrategy" yaml:"field_strategy"`
	CoerceGeometryType bool      `xml:"coerceGeometryType" yaml:"coerce_geometry_type"`
	StrictDimensions   bool      `xml:"strictDimensions" yaml:"strict_dimensions"`
	TaskDB             string    `xml:"taskDB" yaml:"task_db"`
	MetricsNamespace   string    `xml:"metricsNamespace" yaml:"metrics_namespace"`
}

// DefaultConfig 默认配置
func DefaultConfig() *OverlayConfig {
	return &OverlayConfig{
		Log:              LogConfig{Level: "info"},
		FieldStrategy:    "suffix",
		MetricsNamespace: "gooverlay",
	}
}

// DefaultConfigPath 用户配置目录下的 BoundlessMap/overlay.xml
func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("无法获取用户配置目录: %v", err)
	}
	return filepath.Join(configDir, "BoundlessMap", "overlay.xml"), nil
}

// LoadConfig 读取XML或YAML配置文件（按扩展名判断）。
// path为空时读取默认位置，文件不存在时返回默认配置。
func LoadConfig(path string) (*OverlayConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".xml":
		err = xml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("不支持的配置文件类型: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	if _, err := ParseFieldMergeStrategy(cfg.FieldStrategy); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OverlayOptions 由配置生成分析选项
func (c *OverlayConfig) OverlayOptions() (OverlayOptions, error) {
	strategy, err := ParseFieldMergeStrategy(c.FieldStrategy)
	if err != nil {
		return OverlayOptions{}, err
	}
	return OverlayOptions{
		FieldStrategy:      strategy,
		CoerceGeometryType: c.CoerceGeometryType,
		StrictDimensions:   c.StrictDimensions,
	}, nil
}
