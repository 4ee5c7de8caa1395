package fx

import (
	"shooter-sync/internal/api"
	"shooter-sync/internal/auth"
	"shooter-sync/internal/config"
	"shooter-sync/internal/database"
	"shooter-sync/internal/logger"
	"shooter-sync/internal/repository"
	"shooter-sync/internal/server"
	"shooter-sync/internal/service"
	"shooter-sync/internal/world"

	"go.uber.org/fx"
)

func ProvideTokens(cfg *config.Config) (*auth.Tokens, error) {
	return auth.NewTokens(cfg.JWTSecret)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewJournalRepository),
	// api client
	fx.Provide(api.NewReportClient),
	// match
	fx.Provide(world.New),
	fx.Provide(ProvideTokens),
	fx.Provide(service.NewMatchService),
	// server
	fx.Provide(server.NewMatchServer),
	fx.Provide(server.NewSocketHandler),
)
