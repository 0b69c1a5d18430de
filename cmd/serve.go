package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BetterCallFirewall/Pentrack/internal/access"
	"github.com/BetterCallFirewall/Pentrack/internal/auth"
	"github.com/BetterCallFirewall/Pentrack/internal/cert"
	"github.com/BetterCallFirewall/Pentrack/internal/config"
	"github.com/BetterCallFirewall/Pentrack/internal/notify"
	"github.com/BetterCallFirewall/Pentrack/internal/report"
	"github.com/BetterCallFirewall/Pentrack/internal/storage"
	"github.com/BetterCallFirewall/Pentrack/internal/tracker"
	"github.com/BetterCallFirewall/Pentrack/internal/web"
	"github.com/BetterCallFirewall/Pentrack/internal/websocket"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and WebSocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	resolver := auth.NewSessionResolver(store)
	verifier := access.NewVerifier(store, cfg.Realtime.SubscribeTimeout, log.Named("access"))
	hub := websocket.NewHub(websocket.Config{
		SendBuffer:       cfg.Realtime.SendBuffer,
		SubscribeTimeout: cfg.Realtime.SubscribeTimeout,
		WriteWait:        cfg.Realtime.WriteWait,
		PongWait:         cfg.Realtime.PongWait,
		MaxMessageSize:   cfg.Realtime.MaxMessageSize,
		AllowedOrigins:   cfg.Web.AllowedOrigins,
	}, resolver, verifier, log.Named("ws"))
	dispatcher := notify.NewDispatcher(store, hub, log.Named("notify"),
		notify.WithCommenterCacheSize(cfg.Realtime.CommentCacheSize))
	hub.SetInbox(dispatcher)

	generator, err := report.NewGenerator(store, dispatcher, cfg.Reports.OutputDir, cfg.Reports.BaseURL, log.Named("report"))
	if err != nil {
		return err
	}

	srv := web.NewServer(cfg.Web, web.Deps{
		Resolver: resolver,
		Realtime: hub.ServeWS,
		Inbox:    dispatcher,
		Reports:  generator,
		Tracker:  tracker.NewService(store, dispatcher, verifier, log.Named("tracker")),
	}, log.Named("web"))

	tlsConfig, err := serverTLS(cfg.Web, log)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Web.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Web.ListenAddr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln, tlsConfig)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Upgraded sockets are hijacked, so http.Server.Shutdown does not wait for them.
		hubErr := hub.Shutdown(shutdownCtx)
		return errors.Join(srv.Shutdown(shutdownCtx), hubErr)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

// serverTLS returns nil for plain HTTP, the configured key pair, or
// certificates issued by a local CA when no key pair is configured.
func serverTLS(cfg config.WebConfig, log *zap.Logger) (*tls.Config, error) {
	if !cfg.TLS.Enabled {
		return nil, nil
	}
	if cfg.TLS.CertFile != "" {
		pair, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading TLS key pair: %w", err)
		}
		return &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{pair}}, nil
	}

	host, _, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing listen address: %w", err)
	}
	cm, err := cert.NewManager(cfg.TLS.CertDir, host)
	if err != nil {
		return nil, err
	}
	log.Warn("serving with locally issued certificates", zap.String("ca", cm.CAPath()))
	return cm.TLSConfig(), nil
}
