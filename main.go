package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"zorssms/config"
	"zorssms/db"
	"zorssms/logging"
	"zorssms/models"
	"zorssms/presence"
	"zorssms/realtime"
	"zorssms/server"
	"zorssms/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	logger, err := logging.New(cfg)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer logger.Sync()

	database, snap := openDatabase(cfg, logger)
	var persist store.Persister
	if database != nil {
		defer database.Close()
		persist = database
	}

	limits := store.DefaultLimits()
	limits.MaxBioLength = cfg.MaxBioLength
	limits.MaxAvatarBytes = cfg.MaxAvatarBytes

	st := store.New(snap, persist, logger.Named("store"), store.WithLimits(limits))
	router := realtime.NewRouter(st, presence.NewRegistry(), logger.Named("realtime"))

	srvConfig := &server.ServerConfig{
		Port:           cfg.Port,
		TCPPort:        cfg.TCPPort,
		ReadTimeout:    time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.WriteTimeout) * time.Second,
		CORSOrigins:    cfg.CORSOrigins,
		MaxAvatarBytes: cfg.MaxAvatarBytes,
	}
	srv := server.New(router, srvConfig, logger.Named("server"))

	stats := st.Stats()
	logger.Info("state loaded",
		zap.Int("users", stats.Users),
		zap.Int("conversations", stats.Conversations),
		zap.Int("messages", stats.Messages),
		zap.Bool("persistent", database != nil),
	)

	quit := make(chan shutdownRequest, 1)
	ctl := &controller{srv: srv, store: st, logger: logger.Named("control"), quit: quit}
	if cfg.ControlSocket != "" {
		listener, err := ctl.listen(cfg.ControlSocket)
		if err != nil {
			logger.Warn("control socket unavailable", zap.String("path", cfg.ControlSocket), zap.Error(err))
		} else {
			defer os.Remove(cfg.ControlSocket)
			defer listener.Close()
			go ctl.serve(listener)
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	req := shutdownRequest{reason: "maintenance"}
	code := 0
	select {
	case sig := <-sigChan:
		logger.Info("signal received", zap.String("signal", sig.String()))
	case req = <-quit:
	case err := <-errc:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			code = 1
		}
		req.reason = "restart"
	}

	logger.Info("shutting down", zap.String("reason", req.reason), zap.Time("completion", req.completion))
	srv.Shutdown(req.reason, req.completion)
	return code
}

// openDatabase opens the SQLite store, imports the legacy document into an
// empty database and loads the state. Any failure leaves persistence off.
func openDatabase(cfg *config.Config, logger *zap.Logger) (*db.DB, *models.Snapshot) {
	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Error("database unavailable, running in memory only", zap.String("path", cfg.DBPath), zap.Error(err))
		return nil, nil
	}

	importLegacy(database, cfg.LegacyJSONPath, logger)

	snap, err := database.Load()
	if err != nil {
		logger.Error("failed to load state, running in memory only", zap.String("path", cfg.DBPath), zap.Error(err))
		database.Close()
		return nil, nil
	}
	return database, snap
}

func importLegacy(database *db.DB, path string, logger *zap.Logger) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	empty, err := database.IsEmpty()
	if err != nil {
		logger.Warn("legacy import skipped", zap.Error(err))
		return
	}
	if !empty {
		return
	}

	snap, err := db.ReadSnapshotFile(path)
	if err != nil {
		logger.Warn("legacy document is malformed, skipped", zap.String("path", path), zap.Error(err))
		return
	}
	if err := database.Import(snap); err != nil {
		logger.Error("legacy import failed", zap.String("path", path), zap.Error(err))
		return
	}

	logger.Info("legacy document imported",
		zap.String("path", path),
		zap.Int("users", len(snap.Users)),
		zap.Int("conversations", len(snap.Messages)),
	)
}
