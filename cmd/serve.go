package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/osmatch-cli/internal/pipeline"
	"github.com/sells-group/osmatch-cli/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server that runs enrichments and reports their progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveHost != "" {
			cfg.Server.Host = serveHost
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		srv, err := newRunServer(ctx)
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server",
				zap.String("addr", httpSrv.Addr),
				zap.String("input_dir", cfg.Server.InputDir),
			)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown
		g.Go(func() error {
			<-gCtx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := httpSrv.Shutdown(shutdownCtx)
			srv.Wait()
			if err != nil {
				return eris.Wrap(err, "server shutdown")
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRunServer wires the run server to the configured match client.
func newRunServer(ctx context.Context) (*server.Server, error) {
	client := newMatchClient(cfg)
	opts := fileOptions(cfg)

	factory := func(runID string) *pipeline.Driver {
		return pipeline.NewDriver(client,
			pipeline.WithReadOptions(opts),
			pipeline.WithRunID(runID),
		)
	}

	return server.New(ctx, factory,
		server.WithDefaultKey(cfg.OSMatch.Key),
		server.WithInputDir(cfg.Server.InputDir),
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)
}
