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
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tasksLimit int

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "查看任务台账中最近的叠加分析任务",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer env.close()
		if env.tasks == nil {
			return errors.New("未配置任务库，请使用 --task-db 指定")
		}

		tasks, err := env.tasks.List(tasksLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(tasks) == 0 {
			fmt.Fprintln(out, "没有任务记录")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, titleColor.Sprint("TASK\tOPERATION\tSTATUS\tPROCESSED\tWRITTEN\tSKIPPED\tOUTPUT"))
		for _, t := range tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				t.TaskID, t.Operation, t.Status, t.Processed, t.Written, t.Skipped, t.Output)
		}
		return tw.Flush()
	},
}

func init() {
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "n", 20, "最多显示的任务数，0表示全部")
}
