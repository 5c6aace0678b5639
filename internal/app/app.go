package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"CatalogScanner/internal/config"
	"CatalogScanner/internal/infrastructure/parser"
	"CatalogScanner/internal/infrastructure/render"
	"CatalogScanner/internal/infrastructure/transport"
	"CatalogScanner/internal/logging"
	"CatalogScanner/internal/ports"
	"CatalogScanner/internal/scanner"
	"CatalogScanner/internal/usecase"
)

// Application wires configs to use cases.
type Application struct {
	cfg    config.Config
	source ports.CatalogSource
	logger *slog.Logger
}

// New validates cfg and registers one listing scanner per configured site.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tr := transport.NewRestyTransport(cfg.HTTP, baseLogger.With("component", "transport"))
	return NewWithTransport(cfg, tr, baseLogger)
}

// NewWithTransport is New with a caller-supplied transport.
func NewWithTransport(cfg config.Config, tr ports.Transport, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := scanner.NewRegistry()
	for _, site := range cfg.Sites {
		sc, err := parser.NewListingScanner(site, cfg.HTTP, tr, baseLogger.With("component", "scanner."+site.ID))
		if err != nil {
			return nil, err
		}
		registry.Register(sc)
	}

	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))
	return &Application{cfg: cfg, source: source, logger: baseLogger}, nil
}

// Browse fetches one page of site and writes it to out in format.
func (a *Application) Browse(ctx context.Context, site string, params map[string]string, format string, out io.Writer) error {
	b, err := a.useCase(format)
	if err != nil {
		return err
	}
	return b.Run(ctx, usecase.BrowseRequest{Site: site, Params: params}, out)
}

// Modules writes the declarations of every configured site to out.
func (a *Application) Modules(format string, out io.Writer) error {
	b, err := a.useCase(format)
	if err != nil {
		return err
	}
	return b.ListModules(out)
}

func (a *Application) useCase(format string) (*usecase.Browse, error) {
	writer, err := render.ForFormat(format)
	if err != nil {
		return nil, err
	}
	return usecase.NewBrowse(usecase.BrowseDeps{
		Source: a.source,
		Writer: writer,
		Logger: a.logger.With("component", "browse"),
	}), nil
}
