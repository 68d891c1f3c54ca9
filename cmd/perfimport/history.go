package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "列出导入历史（最新在前）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			st, _, err := root.openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			history, err := st.ListHistory(cmd.Context())
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "暂无导入记录")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IMPORT ID\tIMPORTED AT\tFILE\tSHEET\tRECORDS\tPERIODS")
			for _, h := range history {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					h.ImportID,
					h.ImportedAt.Local().Format("2006-01-02 15:04:05"),
					h.OriginalFilename,
					h.SheetName,
					h.TotalRecords,
					strings.Join(h.DetectedPeriods, ","),
				)
			}
			return w.Flush()
		},
	}
}
