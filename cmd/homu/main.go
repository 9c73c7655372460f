// Command homu is the launcher: it loads the TOML configuration file,
// wires together the Store, the Model registry, the host client, the
// webhook intake server, and one supervisor per configured repository,
// then runs until an interrupt or terminate signal arrives (§1: the
// launcher and its config file loader are named out of core scope, but a
// buildable service needs one). Grounded on the teacher's cmd/hook/main.go
// flag-and-serve shape, and on cmd/plank/main.go's errgroup-based
// controller startup for graceful shutdown.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/homu-merge/homu/internal/config"
	"github.com/homu-merge/homu/internal/ghhost"
	"github.com/homu-merge/homu/internal/hookserver"
	"github.com/homu-merge/homu/internal/queue"
	"github.com/homu-merge/homu/internal/store/sqlite"
	"github.com/homu-merge/homu/internal/supervisor"
)

type options struct {
	configPath string
	port       string
}

func gatherOptions() options {
	o := options{}
	flag.StringVar(&o.configPath, "config-path", "/etc/homu/config.toml", "Path to the TOML configuration file.")
	flag.StringVar(&o.port, "port", "", "Port to listen on (overrides [server].port in the config file).")
	flag.Parse()
	return o
}

func main() {
	o := gatherOptions()
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(o.configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	port := cfg.Server.Port
	if o.port != "" {
		port = o.port
	}
	if port == "" {
		port = "8888"
	}

	st, err := sqlite.New(cfg.Server.SqlitePath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open store")
	}
	defer st.Close()

	host := ghhost.NewClient(cfg.Server.GitHubToken, cfg.Server.GitHubRatePerSecond, cfg.Server.GitHubRateBurst)

	registry := queue.NewRegistry()
	mgr := supervisor.NewManager(registry, st, host)
	for _, repoCfg := range cfg.Repos {
		mgr.AddRepo(repoCfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mgr.Rehydrate(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to rehydrate from store")
	}
	cancel()

	metrics := hookserver.NewMetrics()
	secrets := supervisor.RegistrySecrets{Registry: registry}
	srv := hookserver.NewServer(secrets, mgr, metrics)

	httpSrv := &http.Server{Addr: ":" + port, Handler: srv.Router()}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		mgr.Run(runCtx)
		return nil
	})
	g.Go(func() error {
		logrus.WithField("port", port).Info("listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	<-runCtx.Done()
	logrus.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("error during HTTP shutdown")
	}

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Fatal("fatal error during shutdown")
	}
}
