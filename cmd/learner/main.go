package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"apex-learner/internal/agent"
	"apex-learner/internal/cadence"
	"apex-learner/internal/config"
	"apex-learner/internal/learner"
	"apex-learner/internal/metrics"
	"apex-learner/internal/tracing"
	"apex-learner/internal/transport"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "learner",
		Short: "Ape-X learner: trains agents on replay batches and broadcasts parameters",
	}

	var configPath string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Bind the reply and publish endpoints and run the update loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", os.Getenv("LEARNER_CONFIG"), "optional YAML config file")

	for _, envFile := range []string{".env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(ctx, "apex-learner", cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	repEndpoint := transport.TCPEndpoint(cfg.Comm.BindHost, cfg.Comm.RepReqPort)
	replier, err := transport.NewReplier(ctx, repEndpoint)
	if err != nil {
		logger.Error("failed to bind reply endpoint", "endpoint", repEndpoint, "error", err)
		return err
	}
	defer replier.Close()

	inner, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up parameter publisher", "backend", cfg.Comm.PublishBackend, "error", err)
		return err
	}
	publisher := transport.NewAsyncPublisher(inner, logger)
	defer publisher.Close()

	brain, err := agent.NewBrain(cfg.Learner.NumAgents, agent.Config{
		ObsDim:       cfg.Agent.ObsDim,
		NumActions:   cfg.Agent.NumActions,
		LearningRate: cfg.Agent.LearningRate,
		Gamma:        cfg.Agent.Gamma,
	})
	if err != nil {
		return fmt.Errorf("create agents: %w", err)
	}

	controller, err := learner.New(learner.Options{
		NumAgents: cfg.Learner.NumAgents,
		BatchSize: cfg.Learner.BatchSize,
		Cadence: cadence.Policy{
			TargetUpdateFrequency: cfg.Learner.TargetUpdateFrequency,
			ParamUpdateInterval:   cfg.Learner.ParamUpdateInterval,
		},
		QueueCapacity: cfg.Learner.QueueCapacity,
		StartupDelay:  cfg.StartupDelay(),
		RunID:         runID,
		Device:        cfg.Learner.Device,
	}, brain.Agents(), brain, replier, publisher, logger)
	if err != nil {
		return err
	}
	controller.WithScalarWriter(metrics.NewScalarRecorder(logger))

	logger.Info("learner starting",
		"device", cfg.Learner.Device,
		"rep_endpoint", repEndpoint,
		"publish_backend", cfg.Comm.PublishBackend,
		"admin_port", cfg.Server.AdminPort,
	)

	g, gCtx := errgroup.WithContext(ctx)
	if cfg.Server.AdminPort != 0 {
		g.Go(func() error {
			return runAdminServer(gCtx, cfg.Server.AdminPort, controller, publisher, logger)
		})
	}
	g.Go(func() error {
		return controller.Run(gCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("learner exited with error", "step", controller.StepCount(), "error", err)
		return err
	}
	logger.Info("learner shut down gracefully", "step", controller.StepCount())
	return nil
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (transport.Publisher, error) {
	switch cfg.Comm.PublishBackend {
	case config.PublishBackendRedis:
		p, err := transport.NewRedisPublisher(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			return nil, err
		}
		logger.Info("publishing parameters to redis", "channel", p.Channel())
		return p, nil
	default:
		return transport.NewPublisher(ctx, transport.TCPEndpoint(cfg.Comm.BindHost, cfg.Comm.PubSubPort))
	}
}
