package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"perfreview/internal/exporter"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出全部记录为 xlsx",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			st, dataDir, err := root.openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.Records(cmd.Context())
			if err != nil {
				return err
			}
			buf, err := exporter.ExportRecords(records)
			if err != nil {
				return err
			}

			if out == "" {
				out = filepath.Join(dataDir, "exports",
					fmt.Sprintf("绩效记录_%s.xlsx", time.Now().Format("20060102150405")))
			}
			if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已导出 %d 条记录: %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件 (默认数据目录下的 exports/)")
	return cmd
}
