package scanner

import (
	"context"
	"fmt"
	"sort"

	"CatalogScanner/internal/domain"
)

// ParamSpec documents one accepted invocation parameter.
type ParamSpec struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Default     string   `json:"value,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// Module is the immutable declaration a scanner registers with.
type Module struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Site         string      `json:"site"`
	Version      string      `json:"version"`
	FunctionName string      `json:"functionName"`
	Params       []ParamSpec `json:"params"`
}

// Scanner turns one invocation into an ordered list of catalog items.
type Scanner interface {
	Module() Module
	Categories() Categories
	Scan(ctx context.Context, params Params) ([]domain.CatalogItem, error)
}

// Registry keeps a mapping from module ids to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Module().ID] = scanner
}

// Resolve returns a scanner by module id or an error if it is absent.
func (r *Registry) Resolve(id string) (Scanner, error) {
	if scanner, ok := r.scanners[id]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("module %s: %w", id, ErrNotRegistered)
}

// Modules lists the registered declarations ordered by id.
func (r *Registry) Modules() []Module {
	mods := make([]Module, 0, len(r.scanners))
	for _, s := range r.scanners {
		mods = append(mods, s.Module())
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].ID < mods[j].ID })
	return mods
}

// Invoke validates raw against the scanner's categories and runs it.
// Validation failures are returned before the scanner sees the request.
func (r *Registry) Invoke(ctx context.Context, id string, raw map[string]string) ([]domain.CatalogItem, error) {
	scanner, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	params, err := ParseParams(raw, scanner.Categories())
	if err != nil {
		return nil, err
	}
	return scanner.Scan(ctx, params)
}
