package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"apex-learner/internal/codec"
	"apex-learner/internal/config"
	"apex-learner/internal/subscriber"
	"apex-learner/internal/transport"
)

func main() {
	var endpoint string

	rootCmd := &cobra.Command{
		Use:   "param-listener",
		Short: "Follow the learner's parameter broadcast and log every snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("LEARNER_CONFIG"))
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, endpoint)
		},
	}
	rootCmd.Flags().StringVar(&endpoint, "endpoint", "", "learner publish endpoint (default from BIND_HOST and PUBSUB_PORT)")
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

func run(ctx context.Context, cfg *config.Config, endpoint string) error {
	logger := cfg.Log.NewLogger(os.Stderr)

	src, err := newSource(ctx, cfg, endpoint)
	if err != nil {
		logger.Error("failed to subscribe", "backend", cfg.Comm.PublishBackend, "error", err)
		return err
	}

	sub := subscriber.New(src, cfg.Learner.ParamUpdateInterval, logger)
	defer sub.Close()
	sub.OnUpdate(func(s codec.ParameterSnapshot) {
		logger.Info("parameters received",
			"run_id", s.RunID,
			"step", s.Step,
			"tensors", len(s.Tensors),
			"values", s.NumValues(),
		)
	})

	logger.Info("listening for parameters", "backend", cfg.Comm.PublishBackend)
	if err := sub.Run(ctx); err != nil {
		return err
	}
	st := sub.Stats()
	logger.Info("listener stopped", "received", st.Received, "missed", st.Missed, "malformed", st.Malformed, "last_step", st.LastStep)
	return nil
}

func newSource(ctx context.Context, cfg *config.Config, endpoint string) (subscriber.Source, error) {
	if cfg.Comm.PublishBackend == config.PublishBackendRedis {
		return subscriber.NewRedisSource(ctx, cfg.Redis.URL, cfg.Redis.Channel)
	}
	if endpoint == "" {
		endpoint = transport.TCPEndpoint(cfg.Comm.BindHost, cfg.Comm.PubSubPort)
	}
	src, err := subscriber.NewZMQSource(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("zmq source: %w", err)
	}
	return src, nil
}
