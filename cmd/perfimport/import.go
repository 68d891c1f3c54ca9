package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"perfreview/internal/importer"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "解析考评表并写入存储",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if sheet == "" {
				sheet = cfg.Import.Sheet
			}
			log, err := root.newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			st, _, err := root.openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			progress := cmd.ErrOrStderr()
			report, err := importer.NewCoordinator(st, log).Import(cmd.Context(), importer.Options{
				FilePath:  args[0],
				SheetName: sheet,
				OnProgress: func(evt importer.ProgressEvent) {
					fmt.Fprintf(progress, "[%s] %s\n", evt.Type, evt.Message)
				},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "导入完成: %s\n", report.ImportID)
			fmt.Fprintf(out, "  工作表: %s\n", report.SheetName)
			fmt.Fprintf(out, "  表头块: %d\n", len(report.Blocks))
			fmt.Fprintf(out, "  记录数: %d\n", report.TotalRecords)
			fmt.Fprintf(out, "  考评周期: %s\n", strings.Join(report.DetectedPeriods, ", "))
			if n := len(report.Diagnostics); n > 0 {
				fmt.Fprintf(out, "  跳过或调整: %d 处\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "工作表名称 (默认第一个工作表)")
	return cmd
}
