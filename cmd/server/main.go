package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"shooter-sync/internal/config"
	"shooter-sync/internal/constants"
	fxmodules "shooter-sync/internal/fx"
	"shooter-sync/internal/middleware"
	"shooter-sync/internal/repository"
	"shooter-sync/internal/server"
	"shooter-sync/internal/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	matchServer *server.MatchServer,
	socketHandler *server.SocketHandler,
	matchSvc *service.MatchService,
	journal *repository.JournalRepository,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()

	path, handler := matchServer.Handler()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	requestIDMiddleware := middleware.RequestID(logger)

	mux.Handle(path, requestIDMiddleware(c.Handler(handler)))
	mux.Handle(server.SocketPath, requestIDMiddleware(socketHandler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			journal.Start()
			matchSvc.Start()
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			if err := matchSvc.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("error stopping match loop")
			}
			if err := journal.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("error flushing journal")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
