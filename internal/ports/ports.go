package ports

import (
	"context"
	"io"

	"CatalogScanner/internal/domain"
	"CatalogScanner/internal/scanner"
)

// Response is the raw outcome of one GET request.
type Response struct {
	Data   []byte
	Status int
}

// Transport performs outbound HTTP requests. It returns a Response for any
// status code; deciding what counts as a failure is up to the caller.
type Transport interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// CatalogSource resolves a configured site and returns one page of items.
type CatalogSource interface {
	Browse(ctx context.Context, site string, params map[string]string) ([]domain.CatalogItem, error)
	Modules() []scanner.Module
}

// ItemWriter renders results for the caller (table, JSON, ...).
type ItemWriter interface {
	WriteItems(w io.Writer, items []domain.CatalogItem) error
	WriteModules(w io.Writer, modules []scanner.Module) error
}
