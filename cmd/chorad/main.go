// Command chorad is the long-running daemon: it opens the graph store,
// wires the dispatch engine, the pulse loop, and the sync router, then
// serves the HTTP surface until a termination signal arrives: load env +
// viper config, build collaborators, launch background loops, wait on
// SIGINT/SIGTERM for a clean shutdown.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"chora/core/engine"
	"chora/core/primitive"
	"chora/core/pulse"
	"chora/core/semantic"
	"chora/core/store"
	"chora/core/sync"
	"chora/pkg/config"
	httpapi "chora/transport/http"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("chorad exited")
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	log := logrus.New()
	if lv, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lv)
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	reg := primitive.NewStandardRegistry()
	sem := semantic.New(s, semantic.NewHashVectorizer(cfg.Semantic.VectorDim))
	primitive.RegisterCognition(reg, sem)

	eng := engine.New(s, reg)
	eng.StepBudget = cfg.VM.StepBudget

	kr, err := loadOrCreateKeyring(cfg.Sync.KeyringPath)
	if err != nil {
		return err
	}
	router := sync.NewSyncRouter(s, kr, nil)
	router.Register()
	defer router.Close()

	var p *pulse.Pulse
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Pulse.Enabled {
		p = pulse.New(s, eng, pulse.Config{Enabled: true, IntervalSeconds: cfg.Pulse.IntervalSeconds}, clock.New(), log)
		go p.Run(ctx)
	}

	ctrl := httpapi.NewController(eng, p)
	srv := &httpServer{addr: cfg.HTTP.ListenAddr, router: httpapi.NewRouter(ctrl, log)}
	go func() {
		if err := srv.listenAndServe(); err != nil {
			log.WithError(err).Error("http server stopped")
		}
	}()
	log.WithField("addr", cfg.HTTP.ListenAddr).Info("chorad listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	cancel()
	return srv.shutdown(5 * time.Second)
}

func loadOrCreateKeyring(path string) (*sync.Keyring, error) {
	kr, err := sync.LoadKeyring(path)
	if err == nil {
		return kr, nil
	}
	var pathErr *fs.PathError
	if !errors.As(err, &pathErr) || !os.IsNotExist(pathErr) {
		return nil, err
	}
	kr = sync.NewKeyring(sync.Identity{UserID: "local"})
	if err := kr.Save(path); err != nil {
		return nil, err
	}
	return kr, nil
}
