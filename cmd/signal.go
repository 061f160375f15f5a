package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gridflex/gridflex/config"
	coremetrics "github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/core/model"
	sig "github.com/gridflex/gridflex/core/signal"
	"github.com/gridflex/gridflex/infra/gridapi"
	"github.com/gridflex/gridflex/infra/logger"
)

var signalCmd = &cobra.Command{
	Use:   "signal [region]",
	Short: "Print the current grid signal for a region",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignal,
}

func init() {
	rootCmd.AddCommand(signalCmd)
}

func runSignal(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	region, err := model.ParseRegion(args[0])
	if err != nil {
		return err
	}

	grid := gridapi.New(cfg.GridAPI)
	agg := sig.New(grid, cfg.Signals, logger.New("signal-command"), coremetrics.NopSink{})
	current, err := agg.CurrentSignal(ctx, region)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
