package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/liloman25879/spring-vote-app/internal/config"
	"github.com/liloman25879/spring-vote-app/internal/handler"
	"github.com/liloman25879/spring-vote-app/internal/middleware"
	"github.com/liloman25879/spring-vote-app/internal/repository"
	"github.com/liloman25879/spring-vote-app/internal/router"
	"github.com/liloman25879/spring-vote-app/internal/service"
	"github.com/liloman25879/spring-vote-app/internal/store"
)

func main() {
	cfg := config.Load()
	middleware.InitLogger(cfg.LogLevel, "springvote")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, pool := openStore(ctx, cfg)
	defer st.Close()

	handler.InitMetrics(pool)

	tokens := repository.NewTokenRepo(st, cfg.TokenBudget)
	users := repository.NewUserRepo(st, tokens)
	votes := repository.NewVoteRepo(st)
	tasks := repository.NewTaskRepo(st)

	catalog := service.NewCatalogService(tasks, cfg.CatalogPath)
	watch := service.NewWatchService(st)
	voteSvc := service.NewVoteService(users, tokens, votes)
	userSvc := service.NewUserService(users, tokens)
	statsSvc := service.NewStatsService(votes, users, catalog, watch)
	adminSvc := service.NewAdminService(st, users, tokens, votes)

	go service.NewStatsWorker(statsSvc, 15*time.Second).Start(ctx)

	debouncer := middleware.NewDebouncer(cfg.DebounceWindow)
	debouncer.OnReject = func(string) { handler.Metrics.DebounceRejections.Inc() }

	h := &router.Handlers{
		Vote:    handler.NewVoteHandler(voteSvc),
		Task:    handler.NewTaskHandler(catalog),
		User:    handler.NewUserHandler(userSvc),
		Stats:   handler.NewStatsHandler(statsSvc),
		Updates: handler.NewUpdatesHandler(watch),
		Admin:   handler.NewAdminHandler(adminSvc, tokens.Budget()),
		Health:  handler.NewHealthHandler(st),
	}

	app := fiber.New(fiber.Config{
		AppName:      "SpringVote API",
		ServerHeader: "SpringVote",
	})

	router.Setup(app, h, router.Options{
		CORSOrigins: cfg.CORSOrigins,
		AdminKey:    cfg.AdminKey,
		Debouncer:   debouncer,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).
			Str("backend", st.Backend()).Msg("server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	debouncer.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}

// openStore selects the storage backend from config. Postgres and Redis
// failures fall back to the local file store so voting stays available.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, *pgxpool.Pool) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err == nil {
			return pg, pg.Pool()
		}
		log.Warn().Err(err).Msg("postgres unavailable, falling back to file store")
	case "redis":
		r, err := store.NewRedis(ctx, cfg.RedisURL)
		if err == nil {
			return r, nil
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to file store")
	case "file":
		// Explicit file mode, no fallback needed.
	default:
		log.Warn().Str("backend", cfg.StoreBackend).Msg("unknown store backend, using file store")
	}

	f, err := store.NewFile(cfg.FileStoreDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.FileStoreDir).Msg("file store unavailable")
	}
	return f, nil
}
