package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"

	"CatalogScanner/internal/domain"
)

const structuredDataSelector = `script[type="application/ld+json"]`

// structuredItems maps the first embedded linked-data item list of doc to
// records. It returns nil when there is no usable block.
func (e *Extractor) structuredItems(doc *goquery.Document, baseOrigin string, limit int) []domain.CatalogItem {
	var entries []any
	doc.Find(structuredDataSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		v, err := decodeStructured(raw)
		if err != nil {
			e.debug("skip structured data block", "block", i, "error", err)
			return true
		}
		list, ok := findItemList(v)
		if !ok {
			return true
		}
		entries = list
		return false
	})
	if len(entries) == 0 {
		return nil
	}

	items := make([]domain.CatalogItem, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item, ok, err := e.structuredIsolated(m, baseOrigin, i)
		if err != nil {
			e.warn("skip structured entry", "index", i, "error", err)
			continue
		}
		if !ok {
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items
}

// decodeStructured accepts strict JSON first and falls back to JSON5 for
// blocks with trailing commas, comments or single quotes.
func decodeStructured(raw string) (any, error) {
	var v any
	err := json.Unmarshal([]byte(raw), &v)
	if err == nil {
		return v, nil
	}
	if err5 := json5.Unmarshal([]byte(raw), &v); err5 != nil {
		return nil, fmt.Errorf("decode structured data: %w", err)
	}
	return v, nil
}

// findItemList locates the item entries of an ItemList, possibly nested in
// an @graph, a mainEntity or a top-level array.
func findItemList(v any) ([]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		if list, ok := t["itemListElement"].([]any); ok {
			return list, true
		}
		for _, key := range []string{"@graph", "mainEntity"} {
			if nested, ok := t[key]; ok {
				if list, ok := findItemList(nested); ok {
					return list, true
				}
			}
		}
	case []any:
		for _, el := range t {
			if m, ok := el.(map[string]any); ok {
				if _, has := m["itemListElement"]; has {
					return findItemList(m)
				}
			}
		}
		for _, el := range t {
			if m, ok := el.(map[string]any); ok && isListEntry(m) {
				return t, true
			}
		}
	}
	return nil, false
}

func isListEntry(m map[string]any) bool {
	if _, ok := m["item"]; ok {
		return true
	}
	_, hasURL := m["url"]
	_, hasName := m["name"]
	return hasURL || hasName
}

func (e *Extractor) structuredItem(entry map[string]any, baseOrigin string, index int) (domain.CatalogItem, bool) {
	fields := entry
	if inner, ok := entry["item"].(map[string]any); ok {
		fields = inner
	}
	get := func(key string) string {
		if v := stringValue(fields[key]); v != "" {
			return v
		}
		return stringValue(entry[key])
	}

	detail := ToAbsoluteURL(get("url"), baseOrigin)
	if detail == "" {
		// Some lists put the URL in "item" as a plain string.
		detail = ToAbsoluteURL(stringValue(entry["item"]), baseOrigin)
	}
	name := StripRank(CollapseSpace(get("name")))
	if detail == "" && name == "" {
		return domain.CatalogItem{}, false
	}

	id := e.Profile.subjectID(detail)
	if id == "" {
		id = detail
	}
	if id == "" {
		id = Assembler{Profile: e.Profile, Now: e.Now}.syntheticID(index)
	}

	cover := ToAbsoluteURL(imageValue(fields["image"]), baseOrigin)
	if cover == "" {
		cover = ToAbsoluteURL(imageValue(entry["image"]), baseOrigin)
	}

	subtitle := CollapseSpace(get("alternateName"))
	rating, count := ratingValue(fields["aggregateRating"])
	rank := ""
	if pos := stringValue(entry["position"]); pos != "" {
		rank = ParseRank(pos)
	}
	info := CollapseSpace(get("description"))
	date := ParseDate(get("datePublished"))
	if date == "" {
		date = ParseDate(get("startDate"))
	}
	if date == "" {
		date = ParseDate(info)
	}

	return domain.CatalogItem{
		ID:          id,
		Kind:        domain.KindStructured,
		Title:       orDefault(name, domain.UnknownTitle),
		Subtitle:    subtitle,
		CoverURL:    cover,
		DetailURL:   detail,
		Rating:      orDefault(rating, "0"),
		RatingCount: count,
		Rank:        rank,
		ReleaseDate: date,
		MediaType:   ClassifyMediaType(typeValue(fields["@type"]) + " " + info),
		Description: describe(subtitle, rank, rating, info),
		RawInfo:     info,
	}, true
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func imageValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if u := stringValue(t["url"]); u != "" {
			return u
		}
		return stringValue(t["contentUrl"])
	case []any:
		for _, el := range t {
			if u := imageValue(el); u != "" {
				return u
			}
		}
	}
	return ""
}

func typeValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, el := range t {
			if s, ok := el.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func ratingValue(v any) (string, int) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", 0
	}
	rating := stringValue(m["ratingValue"])
	count := 0
	for _, key := range []string{"ratingCount", "reviewCount"} {
		if s := stringValue(m[key]); s != "" {
			if n, err := strconv.Atoi(strings.ReplaceAll(s, ",", "")); err == nil {
				count = n
				break
			}
		}
	}
	return rating, count
}
