package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Field names understood by the assembler.
const (
	FieldTitle       = "title"
	FieldSubtitle    = "subtitle"
	FieldCover       = "cover"
	FieldDetail      = "detail"
	FieldRating      = "rating"
	FieldRatingCount = "ratingCount"
	FieldInfo        = "info"
	FieldRank        = "rank"
)

var knownFields = map[string]struct{}{
	FieldTitle:       {},
	FieldSubtitle:    {},
	FieldCover:       {},
	FieldDetail:      {},
	FieldRating:      {},
	FieldRatingCount: {},
	FieldInfo:        {},
	FieldRank:        {},
}

// Candidate is one selector tried in a field's fallback chain.
// Attr names the attribute to read; empty means the element text.
type Candidate struct {
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr,omitempty"`

	matcher goquery.Matcher
	err     error
}

// Text builds a candidate reading the matched element's text.
func Text(selector string) Candidate { return Candidate{Selector: selector} }

// Attr builds a candidate reading an attribute of the matched element.
func Attr(selector, attr string) Candidate { return Candidate{Selector: selector, Attr: attr} }

func (c Candidate) compile() Candidate {
	if c.matcher != nil || c.err != nil {
		return c
	}
	sel, err := cascadia.Compile(c.Selector)
	if err != nil {
		c.err = fmt.Errorf("selector %q: %w", c.Selector, err)
		return c
	}
	c.matcher = sel
	return c
}

func (c Candidate) String() string {
	if c.Attr == "" {
		return c.Selector
	}
	return c.Selector + "@" + c.Attr
}

// FieldTable maps a field name to its ordered selector candidates.
type FieldTable map[string][]Candidate

// Compile returns a copy of the table with every selector precompiled.
// Candidates whose selector does not compile stay in place and never match.
func (t FieldTable) Compile() FieldTable {
	out := make(FieldTable, len(t))
	for name, cands := range t {
		compiled := make([]Candidate, len(cands))
		for i, c := range cands {
			compiled[i] = c.compile()
		}
		out[name] = compiled
	}
	return out
}

// Validate reports unknown field names and selectors that fail to compile.
func (t FieldTable) Validate() error {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		if _, ok := knownFields[name]; !ok {
			problems = append(problems, fmt.Sprintf("unknown field %q", name))
			continue
		}
		for _, c := range t[name] {
			if strings.TrimSpace(c.Selector) == "" {
				problems = append(problems, fmt.Sprintf("field %s: empty selector", name))
				continue
			}
			if c = c.compile(); c.err != nil {
				problems = append(problems, fmt.Sprintf("field %s: %v", name, c.err))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid field table: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Merge returns a table where fields present in override replace the base chain.
func (t FieldTable) Merge(override FieldTable) FieldTable {
	out := make(FieldTable, len(t)+len(override))
	for name, cands := range t {
		out[name] = append([]Candidate(nil), cands...)
	}
	for name, cands := range override {
		if len(cands) == 0 {
			continue
		}
		out[name] = append([]Candidate(nil), cands...)
	}
	return out
}

// Field resolves the named field of container through the table.
func (t FieldTable) Field(container *goquery.Selection, name string) string {
	return Extract(container, t[name])
}

// Extract returns the first trimmed non-empty value produced by the candidates,
// or "" when none succeeds.
func Extract(container *goquery.Selection, candidates []Candidate) string {
	if container == nil {
		return ""
	}
	for _, c := range candidates {
		if v := tryCandidate(container, c); v != "" {
			return v
		}
	}
	return ""
}

func tryCandidate(container *goquery.Selection, c Candidate) (v string) {
	defer func() {
		if r := recover(); r != nil {
			v = ""
		}
	}()

	c = c.compile()
	if c.err != nil {
		return ""
	}
	found := container.FindMatcher(c.matcher)
	if found.Length() == 0 {
		return ""
	}
	// Several nodes may match; take the first one that yields a value.
	found.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if c.Attr == "" {
			v = strings.TrimSpace(s.Text())
		} else {
			a, _ := s.Attr(c.Attr)
			v = strings.TrimSpace(a)
		}
		return v == ""
	})
	return v
}
