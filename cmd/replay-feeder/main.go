package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"apex-learner/internal/config"
	"apex-learner/internal/feeder"
	"apex-learner/internal/transport"
)

func main() {
	var (
		endpoint string
		steps    int
		interval time.Duration
		seed     int64
	)

	rootCmd := &cobra.Command{
		Use:   "replay-feeder",
		Short: "Send synthetic cartpole replay batches to a learner and print the returned priorities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("LEARNER_CONFIG"))
			if err != nil {
				return err
			}
			logger := cfg.Log.NewLogger(os.Stderr)
			if endpoint == "" {
				endpoint = transport.TCPEndpoint(cfg.Comm.BindHost, cfg.Comm.RepReqPort)
			}
			return run(cmd.Context(), endpoint, &feeder.Runner{
				NumAgents: cfg.Learner.NumAgents,
				BatchSize: cfg.Learner.BatchSize,
				Steps:     steps,
				Interval:  interval,
				Seed:      seed,
				Logger:    logger,
			}, logger)
		},
	}
	rootCmd.Flags().StringVar(&endpoint, "endpoint", "", "learner reply endpoint (default from BIND_HOST and REPREQ_PORT)")
	rootCmd.Flags().IntVar(&steps, "steps", 0, "number of batches to send, 0 for unlimited")
	rootCmd.Flags().DurationVar(&interval, "interval", 0, "pause between batches")
	rootCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	rootCmd.SilenceUsage = true

	for _, envFile := range []string{".env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, endpoint string, runner *feeder.Runner, logger *slog.Logger) error {
	req, err := transport.NewRequester(ctx, endpoint)
	if err != nil {
		return err
	}
	defer req.Close()

	logger.Info("feeding learner", "endpoint", endpoint, "agents", runner.NumAgents, "batch_size", runner.BatchSize)
	stats, err := runner.Run(ctx, req)
	fmt.Printf("requests=%d transitions=%d last_mean_priority=%.6f\n", stats.Requests, stats.Transitions, stats.MeanPriority)
	if err != nil {
		logger.Error("feeder stopped", "error", err)
		return err
	}
	return nil
}
