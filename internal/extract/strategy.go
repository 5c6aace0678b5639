package extract

import (
	"github.com/PuerkitoBio/goquery"

	"CatalogScanner/internal/domain"
)

// Strategy names the path that produced a page's records.
type Strategy string

const (
	StrategyNone       Strategy = ""
	StrategyStructured Strategy = "structured"
	StrategyDOM        Strategy = "dom"
)

type strategyState int

const (
	stateStructured strategyState = iota
	stateDOM
	stateDone
)

// selectStrategy prefers the embedded structured-data list and falls back to
// DOM traversal when it is missing, unparseable or empty.
func (e *Extractor) selectStrategy(doc *goquery.Document, baseOrigin string, limit int) ([]domain.CatalogItem, Strategy) {
	var (
		items []domain.CatalogItem
		used  = StrategyNone
	)
	state := stateStructured
	for state != stateDone {
		switch state {
		case stateStructured:
			state = stateDOM
			if e.DisableStructured {
				continue
			}
			if found := e.structuredItems(doc, baseOrigin, limit); len(found) > 0 {
				items, used = found, StrategyStructured
				state = stateDone
			}
		case stateDOM:
			items, used = e.domItems(doc, baseOrigin, limit), StrategyDOM
			state = stateDone
		}
	}
	return items, used
}
