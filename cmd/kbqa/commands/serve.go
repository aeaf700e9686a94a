package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kbqa-dev/kbqa-go/internal/logging"
	"github.com/kbqa-dev/kbqa-go/internal/server"
	"github.com/kbqa-dev/kbqa-go/internal/store"
)

// NewServeCmd constructs the `kbqa serve` command, which starts the HTTP
// server exposing the question-answering API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kbqa HTTP server",
		Long: `Start the kbqa HTTP server.

The server exposes POST /api/v1/query for answering questions, GET
/api/v1/history for the query log, plus health, readiness and Prometheus
metrics endpoints.

Examples:
  kbqa serve
  kbqa serve --port 9090
  RETRIEVAL_BACKEND=pgvector kbqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			promReg := prometheus.NewRegistry()

			orch, vectorStore, cleanup, err := buildPipeline(ctx, cfg, promReg, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			// Open the query history store. KBQA_HISTORY_DB overrides the
			// default path (~/.kbqa/history.db). Set to "disabled" to disable.
			var history store.HistoryStore
			dbPath := cfg.History.DBPath
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						history = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via configuration")
			}

			if host == "" {
				host = cfg.Server.Host
			}
			if port == 0 {
				port = cfg.Server.Port
			}

			srv, err := server.New(orch, history, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewVectorStorePinger(vectorStore, cfg.Retrieval.Backend),
				},
				RateLimit: cfg.Server.RateLimit,
				RateBurst: cfg.Server.RateBurst,
				APIKey:    cfg.Server.APIKey,
				Registry:  promReg,
				// WriteTimeout must outlast a full retry schedule.
				WriteTimeout: time.Duration(cfg.Generation.TimeoutSeconds)*time.Second + time.Minute,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default from config)")

	return cmd
}
