package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/learnai-dashboard/internal/infra/config"
	"github.com/mkrupp/learnai-dashboard/internal/infra/logging"
	"github.com/mkrupp/learnai-dashboard/internal/infra/transport/http"
	"github.com/mkrupp/learnai-dashboard/internal/repo/course"
	"github.com/mkrupp/learnai-dashboard/internal/repo/kv"
	"github.com/mkrupp/learnai-dashboard/internal/svc/learnsvc"
	"github.com/mkrupp/learnai-dashboard/internal/svc/sessionsvc"
)

const (
	appName = "learnai"
	svcName = "learnsvc"
)

type Config struct {
	config.EnvConfig

	Log       logging.LoggerConfig         `envPrefix:"LOG_"`
	HTTP      learnsvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	Storage   kv.RepositoryConfig          `envPrefix:"STORAGE_"`
	Catalog   course.RepositoryConfig      `envPrefix:"CATALOG_"`
	Thumbnail learnsvc.ThumbnailConfig     `envPrefix:"THUMBNAIL_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Load(ctx, &cfg, configPrefix, ".env"); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.learnsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	repoFactory, err := kv.NewRepositoryFactory(cfg.Storage)
	if err != nil {
		return fmt.Errorf("new kv repository factory: %w", err)
	}

	store, err := sessionsvc.NewStore(ctx, repoFactory)
	if err != nil {
		return fmt.Errorf("new session store: %w", err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			log.ErrorContext(ctx, "close session store", "error", err)
		}
	}()

	store.Hydrate(ctx)

	catalog, err := course.NewRepository(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("new course repository: %w", err)
	}

	thumbnailer, err := learnsvc.NewThumbnailer(cfg.Thumbnail)
	if err != nil {
		return fmt.Errorf("new thumbnailer: %w", err)
	}

	learnSvc := learnsvc.NewLearnService(store, catalog)
	httpTransport := learnsvc.NewHTTPTransport(learnSvc, store, thumbnailer, cfg.HTTP)

	log.InfoContext(ctx, "starting", logging.Group("storage", "kind", cfg.Storage.Kind))

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
