package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"perfreview/internal/importer"
	"perfreview/internal/parser"
)

func newParseCmd(root *rootOptions) *cobra.Command {
	var sheet, out string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "解析考评表并输出 JSON，不写入存储",
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

			coordinator := importer.NewCoordinator(nil, log)
			result, _, err := coordinator.Preview(cmd.Context(), importer.Options{
				FilePath:  args[0],
				SheetName: sheet,
			})
			if err != nil {
				return err
			}
			for _, d := range result.Diagnostics {
				log.Warn("row skipped or adjusted",
					zap.Int("row", d.Row),
					zap.Int("column", d.Column),
					zap.String("message", d.Message),
				)
			}

			if out == "" {
				return writeResult(cmd.OutOrStdout(), result)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := writeResult(f, result); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "已解析 %d 条记录，写入 %s\n", result.TotalRecords, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "工作表名称 (默认第一个工作表)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件 (默认标准输出)")
	return cmd
}

func writeResult(w io.Writer, result *parser.Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
