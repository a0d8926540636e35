package main

import (
	"chatvault/chatvault/config"
	"chatvault/chatvault/controllers"
	"chatvault/chatvault/routes"
	"chatvault/chatvault/services/live"
	"chatvault/chatvault/sources/storage"
	"chatvault/chatvault/sources/store"
	"chatvault/chatvault/utils/logging"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	logging.InitLogger()

	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg := config.LoadConfig(configPath)

	writer, err := store.NewWriter(cfg)
	if err != nil {
		logging.ErrorLogger.Error("writer init error", zap.Error(err))
		os.Exit(1)
	}
	defer writer.Close()
	reader := store.NewReader(cfg.DataDir)

	hub := live.NewHub()
	writer.SetPublisher(hub)

	setupArchiver(cfg, writer)

	recordCtrl := controllers.NewRecordController(writer)
	viewerCtrl := controllers.NewViewerController(reader)
	healthCtrl := controllers.NewHealthController()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Mount("/record", routes.RecordRoutes(recordCtrl, cfg))
	r.Mount("/health", routes.HealthRoutes(healthCtrl))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: r,
	}
	go func() {
		logging.AppLogger.Info("recorder listening", zap.Int("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
		}
	}()

	var webSrv *http.Server
	if cfg.EnableWebUI {
		wr := chi.NewRouter()
		wr.Use(middleware.RealIP)
		wr.Use(middleware.Recoverer)
		wr.Mount("/", routes.ViewerRoutes(viewerCtrl, hub))

		webSrv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.WebUIHost, cfg.WebUIPort),
			Handler: wr,
		}
		go func() {
			logging.AppLogger.Info("webui listening",
				zap.String("host", cfg.WebUIHost), zap.Int("port", cfg.WebUIPort))
			if err := webSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.ErrorLogger.Error("webui listen error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	if webSrv != nil {
		if err := webSrv.Shutdown(shutdownCtx); err != nil {
			logging.ErrorLogger.Error("webui shutdown error", zap.Error(err))
		}
	}
	logging.AppLogger.Info("shutdown complete")
}

// setupArchiver wires the rotated-file mirror when configured. Archiving is
// best-effort, so an unreachable object store must never keep the recorder
// from starting.
func setupArchiver(cfg config.Config, writer *store.Writer) {
	if !cfg.Archive.Enable {
		return
	}
	archive, err := storage.NewArchiveClient(cfg.Archive)
	if err != nil {
		logging.ErrorLogger.Error("archive unavailable, continuing without mirror", zap.Error(err))
		return
	}
	writer.SetArchiver(archive)
}
