package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gridflex/gridflex/app"
	"github.com/gridflex/gridflex/config"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule all pending jobs once and exit",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "service close: %v\n", cerr)
		}
	}()

	summary, err := svc.Scheduler.ScheduleAllPending(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("scheduled=%d deferred=%d rejected=%d failed=%d\n",
		summary.Scheduled, summary.Deferred, summary.Rejected, summary.Failed)
	for id, msg := range summary.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", id, msg)
	}
	return nil
}
