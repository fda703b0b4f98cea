/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qenty/academy/config"
	"github.com/qenty/academy/internal/logging"
	"github.com/qenty/academy/internal/mq"
	"github.com/qenty/academy/internal/receipts"
	"github.com/qenty/academy/internal/storage"
)

// workerCmd represents the worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume purchase events and store receipts",
	Long: `Subscribes to the purchase channel of the configured message queue and
writes one JSON receipt per event to object storage. Usage:

	MQ_BACKEND=rabbitmq STORAGE_BACKEND=minio academy worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.MQ.Backend == "memory" {
			return errors.New("the memory broker is consumed inside the server process; pick a networked MQ_BACKEND for the worker")
		}

		queue, err := mq.New(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND must be set to run the worker")
		}
		defer queue.Close()

		objects, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		if objects == nil {
			logger.Warn("object storage disabled; receipts are only logged")
		}

		err = receipts.NewWorker(objects, cfg.MQ.PurchaseChannel, logger).Run(ctx, queue)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
