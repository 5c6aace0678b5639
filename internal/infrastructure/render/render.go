package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"CatalogScanner/internal/domain"
	"CatalogScanner/internal/ports"
	"CatalogScanner/internal/scanner"
)

// Output formats accepted by ForFormat.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

const titleWidth = 40

// ForFormat returns the writer for name.
func ForFormat(name string) (ports.ItemWriter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatTable:
		return Table{}, nil
	case FormatJSON:
		return JSON{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s or %s)", name, FormatTable, FormatJSON)
	}
}

// Table renders rounded go-pretty tables.
type Table struct{}

var _ ports.ItemWriter = Table{}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func (Table) WriteItems(w io.Writer, items []domain.CatalogItem) error {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "ID", "Title", "Date", "Type", "Rating", "Votes", "Link"})
	for i, it := range items {
		t.AppendRow(table.Row{
			i + 1,
			it.ID,
			text.Trim(it.Title, titleWidth),
			it.ReleaseDate,
			it.MediaType,
			it.Rating,
			it.RatingCount,
			it.DetailURL,
		})
	}
	t.AppendFooter(table.Row{"", "", "items", len(items)})
	t.Render()
	return nil
}

func (Table) WriteModules(w io.Writer, modules []scanner.Module) error {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Version", "Site", "Params"})
	for _, m := range modules {
		t.AppendRow(table.Row{m.ID, m.Title, m.Version, m.Site, paramSummary(m.Params)})
	}
	t.Render()
	return nil
}

func paramSummary(params []scanner.ParamSpec) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		switch {
		case len(p.Options) > 0:
			parts = append(parts, p.Name+"="+strings.Join(p.Options, "|"))
		case p.Default != "":
			parts = append(parts, p.Name+"="+strconv.Quote(p.Default))
		default:
			parts = append(parts, p.Name)
		}
	}
	return strings.Join(parts, " ")
}

// JSON writes the records with their wire field names.
type JSON struct {
	Indent bool
}

var _ ports.ItemWriter = JSON{}

func (j JSON) WriteItems(w io.Writer, items []domain.CatalogItem) error {
	if items == nil {
		items = []domain.CatalogItem{}
	}
	return j.encode(w, items)
}

func (j JSON) WriteModules(w io.Writer, modules []scanner.Module) error {
	if modules == nil {
		modules = []scanner.Module{}
	}
	return j.encode(w, modules)
}

func (j JSON) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
