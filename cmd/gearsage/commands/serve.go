package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/gearsage/gearsage-go/internal/embedder"
	"github.com/gearsage/gearsage-go/internal/generator"
	"github.com/gearsage/gearsage-go/internal/logging"
	"github.com/gearsage/gearsage-go/internal/recommend"
	"github.com/gearsage/gearsage-go/internal/server"
	"github.com/gearsage/gearsage-go/internal/tracing"
)

// NewServeCmd constructs the `gearsage serve` command, which starts the HTTP
// recommendation API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GearSage HTTP recommendation API",
		Long: `Start the GearSage HTTP server on localhost.

The server exposes POST /api/recommend for grounded recommendations,
GET /api/health and /api/ready for probes, and GET /metrics for Prometheus.
Set GEARSAGE_API_KEY to require Bearer authentication on /api/recommend.

Examples:
  gearsage serve
  gearsage serve --port 9090
  MODEL_PROVIDER=azure gearsage serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embedder.ResolveBackend()))

			store, storePinger, closeStore, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeStore()

			retriever, err := buildRetriever(emb, store)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			chatModel, err := generator.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}

			rec, err := recommend.New(recommendConfig(retriever, chatModel))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			host, port = listenAddr(host, cmd.Flags().Changed("host"), port, cmd.Flags().Changed("port"))

			srv, err := server.New(rec, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   []server.Pinger{storePinger},
				RateLimit: float64(getEnvInt("SERVER_RATE_LIMIT", 0)),
				RateBurst: getEnvInt("SERVER_RATE_BURST", 0),
				APIKey:    os.Getenv("GEARSAGE_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
