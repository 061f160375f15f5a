package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridflex/gridflex/config"
	"github.com/gridflex/gridflex/core/audit"
	"github.com/gridflex/gridflex/pkg/export"
)

var (
	exportFormat string
	exportSince  string
	exportJobID  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the decision audit log",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or csv")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only records after this RFC3339 time")
	exportCmd.Flags().StringVar(&exportJobID, "job", "", "only records for this job id")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var store audit.Store
	switch cfg.Audit.Backend {
	case "jsonl":
		store, err = audit.NewJSONLStore(cfg.Audit.Path)
	case "sqlite":
		store, err = audit.NewSQLiteStore(cfg.Audit.Path)
	default:
		return fmt.Errorf("backend %s holds no exportable records", cfg.Audit.Backend)
	}
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "store close: %v\n", cerr)
		}
	}()

	q := audit.Query{JobID: exportJobID}
	if exportSince != "" {
		t, perr := time.Parse(time.RFC3339, exportSince)
		if perr != nil {
			return fmt.Errorf("invalid --since: %w", perr)
		}
		q.Start = t
	}
	records, err := store.Query(ctx, q)
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		return export.WriteJSON(cmd.OutOrStdout(), records)
	case "csv":
		return export.WriteCSV(cmd.OutOrStdout(), records)
	default:
		return fmt.Errorf("unknown format %s", exportFormat)
	}
}
