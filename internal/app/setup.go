// Package app contains the application setup for the catalog service.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mitienda/catalog/internal/assets"
	"github.com/mitienda/catalog/internal/config"
	"github.com/mitienda/catalog/internal/platform/server"
	"github.com/mitienda/catalog/internal/service"
	"github.com/mitienda/catalog/internal/store"
	"github.com/mitienda/catalog/internal/transport/rest"
	"github.com/mitienda/catalog/internal/transport/ui"
)

type Dependencies struct {
	ProductService service.ProductService
	Assets         *assets.Manager
	PublicPath     string
	Logger         *slog.Logger
}

func SetupDependencies(dbPool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) *Dependencies {
	assetManager := assets.NewManager(cfg.Assets.Dir)
	pService := service.NewService(store.NewPgStore(dbPool), assetManager, logger)

	return &Dependencies{
		ProductService: pService,
		Assets:         assetManager,
		PublicPath:     cfg.Assets.PublicPath,
		Logger:         logger,
	}
}

// SetupHttpHandler initializes the HTTP routes for the catalog application.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) (http.Handler, error) {
	mux := server.NewChiRouter(deps.Logger)
	if err := wireRoutes(mux, deps); err != nil {
		return nil, err
	}
	return mux, nil
}

// wireRoutes sets up the API, HTML and static upload routes.
func wireRoutes(mux *chi.Mux, deps *Dependencies) error {
	apiHandler := rest.NewHandler(deps.ProductService, deps.Logger)
	apiHandler.RegisterRoutes(mux)

	uiHandler, err := ui.NewHandler(deps.ProductService, deps.PublicPath, deps.Logger)
	if err != nil {
		return fmt.Errorf("failed to set up UI handler: %w", err)
	}
	uiHandler.RegisterRoutes(mux)

	prefix := strings.TrimSuffix(deps.PublicPath, "/")
	fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(deps.Assets.Dir())))
	mux.Get(prefix+"/*", fileServer.ServeHTTP)
	return nil
}

// SetupHttpServer creates and configures an HTTP server for the catalog application.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) (*http.Server, error) {
	mux, err := SetupHttpHandler(deps)
	if err != nil {
		return nil, err
	}

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux), nil
}
