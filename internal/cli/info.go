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

	overlay "github.com/GrainArc/GoOverlay"
	"github.com/spf13/cobra"
)

var infoTable string

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "显示图层信息",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		layer, err := overlay.ReadGeospatialFile(args[0], infoTable)
		if err != nil {
			return err
		}
		p := layer.DataProvider()
		out := cmd.OutOrStdout()
		titleColor.Fprintf(out, "图层 %s\n", layer.GetLayerName())
		fmt.Fprintf(out, "  几何类型: %s\n", p.GeometryType())
		fmt.Fprintf(out, "  坐标系:   %s\n", p.CRS())
		fmt.Fprintf(out, "  编码:     %s\n", p.Encoding())
		fmt.Fprintf(out, "  要素数:   %d\n", p.FeatureCount())
		fmt.Fprintf(out, "  范围:     %s\n", p.Extent())
		fmt.Fprintln(out, "  字段:")
		for _, f := range p.Fields() {
			fmt.Fprintf(out, "    %-20s %s\n", f.Name, f.Type)
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoTable, "table", "", "SQLite文件中的表名")
}
