package parser

import (
	"context"
	"fmt"
	"log/slog"

	"CatalogScanner/internal/config"
	"CatalogScanner/internal/domain"
	"CatalogScanner/internal/ports"
	"CatalogScanner/internal/scanner"
)

// StrategySource implements CatalogSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.CatalogSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// Browse runs the scanner of site. The site's configured options act as
// defaults for any parameter the caller leaves out.
func (s *StrategySource) Browse(ctx context.Context, site string, params map[string]string) ([]domain.CatalogItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	cfg, ok := s.site(site)
	if !ok {
		return nil, fmt.Errorf("site %s: %w", site, scanner.ErrNotRegistered)
	}

	merged := make(map[string]string, len(cfg.Options)+len(params))
	for k, v := range cfg.Options {
		merged[k] = v
	}
	for k, v := range params {
		if v != "" {
			merged[k] = v
		}
	}
	s.debug("browse site", "site", site, "params", merged)

	items, err := s.registry.Invoke(ctx, cfg.ID, merged)
	if err != nil {
		return nil, fmt.Errorf("browse site %s: %w", site, err)
	}

	s.debug("site produced items", "site", site, "count", len(items))
	return items, nil
}

// Modules lists the declarations of every registered scanner.
func (s *StrategySource) Modules() []scanner.Module {
	if s.registry == nil {
		return nil
	}
	return s.registry.Modules()
}

func (s *StrategySource) site(id string) (config.SiteConfig, bool) {
	for _, site := range s.sites {
		if site.ID == id {
			return site, true
		}
	}
	return config.SiteConfig{}, false
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
