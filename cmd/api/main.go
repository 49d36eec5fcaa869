package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CC-PatrickC/MyGovRemaster/internal/config"
	"github.com/CC-PatrickC/MyGovRemaster/internal/database"
	"github.com/CC-PatrickC/MyGovRemaster/internal/filestore"
	"github.com/CC-PatrickC/MyGovRemaster/internal/router"
	"github.com/CC-PatrickC/MyGovRemaster/pkg/logger"
)

func main() {
	// config + logger
	cfg := config.Load()
	l := logger.New(cfg.Env)

	// db
	pool, err := database.Open(context.Background(), cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	// attachment blob store
	files, err := filestore.NewDisk(cfg.UploadDir)
	if err != nil {
		l.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("upload dir init failed")
	}

	// http
	r := router.New(l, pool, files, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("shutdown error")
	}
}
