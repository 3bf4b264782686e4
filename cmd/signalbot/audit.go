package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"signalbot/internal/audit"

	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	var limit int
	var prune bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent delivery attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("audit log is disabled (set audit.enabled to true)")
			}
			l, err := audit.Open(cfg.Audit.DBPath, logger)
			if err != nil {
				return err
			}
			defer l.Close()

			if prune {
				n, err := l.Prune(cmd.Context(), time.Duration(cfg.Audit.RetentionDays)*24*time.Hour)
				if err != nil {
					return err
				}
				fmt.Printf("removed %d entries older than %d days\n", n, cfg.Audit.RetentionDays)
				return nil
			}

			entries, err := l.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tKIND\tRECIPIENT\tTARGET\tRESULT\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.Recipient, e.TargetTimestamp, e.Result, e.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete entries older than audit.retentionDays")
	return cmd
}
