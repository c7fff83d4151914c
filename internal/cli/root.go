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
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// 全局参数
	configPath  string
	logLevel    string
	logConsole  bool
	taskDBPath  string
	metricsFile string

	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

var rootCmd = &cobra.Command{
	Use:     "gooverlay",
	Version: "dev",
	Short:   "矢量图层叠加分析（相交、裁剪）",
	Long: `gooverlay 对两个矢量图层做叠加分析，结果写入GeoJSON或SQLite文件。

支持的输入输出格式: .geojson .json .sqlite .db`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "配置文件路径(.xml/.yaml)，默认读取用户配置目录")
	pf.StringVar(&logLevel, "log-level", "", "日志级别: debug|info|warn|error|off")
	pf.BoolVar(&logConsole, "log-console", false, "使用便于阅读的控制台日志格式")
	pf.StringVar(&taskDBPath, "task-db", "", "任务台账SQLite文件，为空时不记录")
	pf.StringVar(&metricsFile, "metrics-file", "", "运行结束后把Prometheus指标写入该文本文件")

	rootCmd.AddCommand(intersectionCmd, clipCmd, tasksCmd, infoCmd)
}
