package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"CatalogScanner/internal/ports"
)

// BrowseDeps wires the driven adapters into the browse use case.
type BrowseDeps struct {
	Source ports.CatalogSource
	Writer ports.ItemWriter
	Logger *slog.Logger
}

// Browse fetches one listing page and renders it.
type Browse struct {
	source ports.CatalogSource
	writer ports.ItemWriter
	logger *slog.Logger
}

// BrowseRequest names the site and the raw invocation parameters.
type BrowseRequest struct {
	Site   string
	Params map[string]string
}

// NewBrowse constructs the browse use case.
func NewBrowse(deps BrowseDeps) *Browse {
	return &Browse{
		source: deps.Source,
		writer: deps.Writer,
		logger: deps.Logger,
	}
}

// Run executes req and writes the result to out. Nothing is written when
// the page fails.
func (b *Browse) Run(ctx context.Context, req BrowseRequest, out io.Writer) error {
	if b.source == nil || b.writer == nil {
		return fmt.Errorf("browse use case is not configured")
	}

	started := time.Now()
	items, err := b.source.Browse(ctx, req.Site, req.Params)
	if err != nil {
		return fmt.Errorf("browse %s: %w", req.Site, err)
	}
	if b.logger != nil {
		b.logger.Info("browse finished", "site", req.Site, "items", len(items), "elapsed", time.Since(started).Round(time.Millisecond))
	}

	if err := b.writer.WriteItems(out, items); err != nil {
		return fmt.Errorf("write items: %w", err)
	}
	return nil
}

// ListModules writes the declarations of every configured scanner.
func (b *Browse) ListModules(out io.Writer) error {
	if b.source == nil || b.writer == nil {
		return fmt.Errorf("browse use case is not configured")
	}
	if err := b.writer.WriteModules(out, b.source.Modules()); err != nil {
		return fmt.Errorf("write modules: %w", err)
	}
	return nil
}
