package cli

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"explodingkittens/internal/bot"
	"explodingkittens/internal/cache"
	"explodingkittens/internal/config"
	"explodingkittens/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the game server",
		Long: `Start the Exploding Kittens server.

Settings come from the environment (or a .env file): KITTENS_LISTEN,
KITTENS_WS_LISTEN, KITTENS_REDIS_ADDR and KITTENS_LOG_LEVEL. The
--listen flag overrides KITTENS_LISTEN.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "TCP listen address (overrides KITTENS_LISTEN)")

	return cmd
}

func runServe(opts *ServeOptions) error {
	cfg := config.Load()
	if opts.Listen != "" {
		cfg.ListenAddr = opts.Listen
	}

	log, err := newLogger(cfg.LogLevel, opts.Verbose)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr != "" {
		if err := cache.Init(ctx, cfg.RedisAddr); err != nil {
			// History is best effort; the game runs without it.
			log.WithError(err).Warn("redis unavailable, action history disabled")
		} else {
			log.WithField("addr", cfg.RedisAddr).Info("action history enabled")
		}
	}

	srv := server.New(cfg, log)
	srv.SetBotSpawner(func(name string, conn net.Conn) {
		b := bot.New(name, conn, time.Now().UnixNano(), log)
		go b.Run()
	})

	if cfg.WSAddr != "" {
		go func() {
			if err := srv.ServeWS(cfg.WSAddr); err != nil {
				log.WithError(err).Error("websocket listener failed")
			}
		}()
	}

	return srv.ListenAndServe(ctx)
}
