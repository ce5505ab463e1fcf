package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pardeepwalia007/Assignment-RAG/internal/demo/sampledata"
)

func main() {
	cfg, err := sampledata.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load sample data config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := sampledata.Write(ctx, cfg)
	if err != nil {
		logger.Error("failed to write sample data", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info(
		"sample data written",
		slog.String("customers", out.Customers),
		slog.String("tickets", out.Tickets),
		slog.String("policy", out.Policy),
		slog.Int("customer_rows", out.Rows["customers"]),
		slog.Int("ticket_rows", out.Rows["tickets"]),
		slog.Int64("seed", cfg.Seed),
	)
}
