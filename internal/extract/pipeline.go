package extract

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CatalogScanner/internal/domain"
)

// Extractor turns one listing page into ordered CatalogItems.
type Extractor struct {
	Profile Profile
	Loader  DocumentLoader
	Logger  *slog.Logger
	// Now feeds synthetic ids; nil means time.Now.
	Now func() time.Time
	// DisableStructured forces the DOM traversal path.
	DisableStructured bool

	assemble   func(s *goquery.Selection, baseOrigin string, index int) (domain.CatalogItem, bool, error)
	structured func(entry map[string]any, baseOrigin string, index int) (domain.CatalogItem, bool)
}

// NewExtractor wires a goquery-backed extractor for profile.
func NewExtractor(profile Profile, logger *slog.Logger) *Extractor {
	return &Extractor{
		Profile: profile,
		Loader:  GoqueryLoader{},
		Logger:  logger,
	}
}

// WithSyntheticScope returns a copy of e whose synthetic ids carry scope
// after the profile prefix. Pages extracted in the same run with distinct
// scopes never share a synthetic id.
func (e *Extractor) WithSyntheticScope(scope string) *Extractor {
	scoped := *e
	if scope != "" {
		scoped.Profile.SyntheticPrefix = e.Profile.syntheticPrefix() + "_" + scope
	}
	return &scoped
}

// Result is the outcome of one page extraction.
type Result struct {
	Items    []domain.CatalogItem
	Strategy Strategy
}

// ExtractPage parses payload and returns its records in document order,
// truncated to limit when limit > 0. A parse failure is returned as an
// error; a container that fails to assemble is logged and skipped.
func (e *Extractor) ExtractPage(payload []byte, baseOrigin string, limit int) ([]domain.CatalogItem, error) {
	res, err := e.Extract(payload, baseOrigin, limit)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Extract is ExtractPage that also reports which strategy was used.
func (e *Extractor) Extract(payload []byte, baseOrigin string, limit int) (Result, error) {
	loader := e.Loader
	if loader == nil {
		loader = GoqueryLoader{}
	}

	var res Result
	err := withDocument(loader, payload, func(doc *goquery.Document) error {
		res.Items, res.Strategy = e.selectStrategy(doc, baseOrigin, limit)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("load document: %w", err)
	}
	if res.Items == nil {
		res.Items = []domain.CatalogItem{}
	}
	e.debug("page extracted", "strategy", res.Strategy, "items", len(res.Items))
	return res, nil
}

func (e *Extractor) domItems(doc *goquery.Document, baseOrigin string, limit int) []domain.CatalogItem {
	containers := doc.Find(e.Profile.ItemSelector)
	if containers.Length() == 0 {
		e.debug("no item containers", "selector", e.Profile.ItemSelector)
		return nil
	}

	items := make([]domain.CatalogItem, 0, containers.Length())
	containers.EachWithBreak(func(i int, s *goquery.Selection) bool {
		item, ok, err := e.assembleIsolated(s, baseOrigin, i)
		if err != nil {
			e.warn("skip item", "index", i, "error", err)
			return true
		}
		if !ok {
			e.debug("skip item without id and title", "index", i)
			return true
		}
		items = append(items, item)
		return limit <= 0 || len(items) < limit
	})
	return items
}

// assembleIsolated converts both errors and panics of one container into an
// ItemError so the rest of the page keeps going.
func (e *Extractor) assembleIsolated(s *goquery.Selection, baseOrigin string, index int) (item domain.CatalogItem, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			item, ok = domain.CatalogItem{}, false
			err = &ItemError{Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	assemble := e.assemble
	if assemble == nil {
		assemble = Assembler{Profile: e.Profile, Now: e.Now}.Assemble
	}
	item, ok, err = assemble(s, baseOrigin, index)
	if err != nil {
		return domain.CatalogItem{}, false, &ItemError{Index: index, Err: err}
	}
	return item, ok, nil
}

// structuredIsolated is the structured-data counterpart of assembleIsolated.
func (e *Extractor) structuredIsolated(entry map[string]any, baseOrigin string, index int) (item domain.CatalogItem, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			item, ok = domain.CatalogItem{}, false
			err = &ItemError{Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	build := e.structured
	if build == nil {
		build = e.structuredItem
	}
	item, ok = build(entry, baseOrigin, index)
	return item, ok, nil
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.Logger != nil {
		e.Logger.Debug(msg, args...)
	}
}

func (e *Extractor) warn(msg string, args ...any) {
	if e.Logger != nil {
		e.Logger.Warn(msg, args...)
	}
}
