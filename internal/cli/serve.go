package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/todopro/internal/logging"
	"github.com/nhle/todopro/internal/mailer"
	"github.com/nhle/todopro/internal/server"
	"github.com/nhle/todopro/internal/store"
)

var (
	serveAddr  string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the account and task server",
	Long: `Run the HTTP server that owns accounts and stored task collections.

Examples:
  todopro serve
  todopro serve --addr :9090
  TODOPRO_SERVER_REDIS_ADDR=localhost:6379 todopro serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.listen)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
}

func runServe(cmd *cobra.Command, _ []string) error {
	sc := cfg.Server
	if serveAddr != "" {
		sc.Listen = serveAddr
	}

	logger, err := logging.New(logging.Options{File: sc.LogFile, Console: true, Debug: serveDebug})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.NewSQLiteStore(sc.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvCfg := server.Config{
		Store:     db,
		Mailer:    mailer.New(sc.Mail, mailer.NewLogMailer(logger)),
		Logger:    logger,
		BaseURL:   sc.BaseURL,
		RateLimit: sc.RateLimit,
		Release:   sc.Environment == "production",
	}

	if sc.RedisAddr != "" {
		limiter, client, err := server.OpenRedisLimiter(ctx, sc.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		srvCfg.Limiter = limiter
		logger.Infow("rate limiting enabled", "redis", sc.RedisAddr, "limit", sc.RateLimit)
	}

	return server.New(srvCfg).Run(ctx, sc.Listen)
}
