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
	"context"
	"fmt"
	"os"
	"os/signal"

	overlay "github.com/GrainArc/GoOverlay"
	"github.com/spf13/cobra"
)

// overlayFlags 相交和裁剪命令共用的参数
type overlayFlags struct {
	output       string
	onlySelected bool
	selectA      string
	selectB      string
	layerA       string
	layerB       string
	strategy     string
	coerce       bool
	strict       bool
}

func (f *overlayFlags) register(cmd *cobra.Command, withStrategy bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "", "输出文件路径(.geojson/.sqlite)")
	fs.BoolVar(&f.onlySelected, "only-selected", false, "只处理选择集中的要素")
	fs.StringVar(&f.selectA, "select-a", "", "输入图层选择集，逗号分隔的要素ID")
	fs.StringVar(&f.selectB, "select-b", "", "叠加图层选择集，逗号分隔的要素ID")
	fs.StringVar(&f.layerA, "layer-a", "", "输入SQLite文件中的表名")
	fs.StringVar(&f.layerB, "layer-b", "", "叠加SQLite文件中的表名")
	fs.BoolVar(&f.coerce, "coerce", false, "把结果几何转换为输出图层的几何类型")
	if withStrategy {
		fs.StringVar(&f.strategy, "strategy", "", "字段合并策略: suffix|prefix|a|b")
		fs.BoolVar(&f.strict, "strict-dimensions", false, "要求输入图层维度不高于叠加图层")
	}
	_ = cmd.MarkFlagRequired("output")
}

var (
	intersectionFlags overlayFlags
	clipFlags         overlayFlags
)

var intersectionCmd = &cobra.Command{
	Use:   "intersection <input> <overlay>",
	Short: "相交分析",
	Long: `对输入图层的每个要素与叠加图层中真实相交的每个要素求交，
每一对生成一个输出要素，属性为两个图层属性的合并。`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverlay(cmd, overlay.OperationIntersection, &intersectionFlags, args[0], args[1])
	},
}

var clipCmd = &cobra.Command{
	Use:   "clip <input> <clip>",
	Short: "裁剪分析",
	Long: `用裁剪图层的全部要素依次裁剪输入图层的每个要素，
输出保留输入图层的字段和属性。`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverlay(cmd, overlay.OperationClip, &clipFlags, args[0], args[1])
	},
}

func init() {
	intersectionFlags.register(intersectionCmd, true)
	clipFlags.register(clipCmd, false)
}

func runOverlay(cmd *cobra.Command, operation string, flags *overlayFlags, inputPath, methodPath string) error {
	env, err := newEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.close()

	options, err := env.cfg.OverlayOptions()
	if err != nil {
		return err
	}
	if flags.strategy != "" {
		if options.FieldStrategy, err = overlay.ParseFieldMergeStrategy(flags.strategy); err != nil {
			return err
		}
	}
	if flags.coerce {
		options.CoerceGeometryType = true
	}
	if flags.strict {
		options.StrictDimensions = true
	}

	layerA, err := openLayer(inputPath, flags.layerA)
	if err != nil {
		return err
	}
	layerB, err := openLayer(methodPath, flags.layerB)
	if err != nil {
		return err
	}
	onlySelected, err := applySelection(flags, layerA, layerB)
	if err != nil {
		return err
	}

	analyzer := overlay.NewOverlayAnalyzer(
		overlay.WithOptions(options),
		overlay.WithLogger(env.logger),
		overlay.WithMetrics(env.metrics),
		overlay.WithTaskStore(env.tasks),
	)

	ctx, stop := signal.NotifyContext(contextFor(cmd), os.Interrupt)
	defer stop()
	progress := overlay.ContextProgress(ctx, nil)

	var result *overlay.OverlayResult
	switch operation {
	case overlay.OperationIntersection:
		result, err = analyzer.RunIntersection(layerA, layerB, flags.output, onlySelected, progress)
	default:
		result, err = analyzer.RunClip(layerA, layerB, flags.output, onlySelected, progress)
	}
	if err != nil {
		return fmt.Errorf("%s 失败: %w", operation, err)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

func openLayer(path, table string) (*overlay.Layer, error) {
	return overlay.ReadGeospatialFile(path, table)
}

// applySelection 设置选择集。只给出一个图层的选择集时，另一个图层选择全部要素
func applySelection(flags *overlayFlags, layerA, layerB *overlay.Layer) (bool, error) {
	idsA, err := parseIDs(flags.selectA)
	if err != nil {
		return false, err
	}
	idsB, err := parseIDs(flags.selectB)
	if err != nil {
		return false, err
	}
	onlySelected := flags.onlySelected || len(idsA) > 0 || len(idsB) > 0
	if !onlySelected {
		return false, nil
	}

	for _, sel := range []struct {
		layer *overlay.Layer
		ids   []int64
	}{{layerA, idsA}, {layerB, idsB}} {
		if len(sel.ids) > 0 {
			sel.layer.Select(sel.ids...)
			continue
		}
		if err := selectAll(sel.layer); err != nil {
			return false, err
		}
	}
	return true, nil
}

// contextFor 命令没有上下文时使用Background
func contextFor(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
