package scanner

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Recognized invocation keys.
const (
	ParamPage       = "page"
	ParamYear       = "year"
	ParamCategory   = "category"
	ParamChartType  = "chartType"
	ParamMaxResults = "maxResults"
)

// CategoryMixed asks a scanner to merge its two primary charts.
const CategoryMixed = "mixed"

var yearExpr = regexp.MustCompile(`^\d{4}$`)

// Params is the validated form of an invocation.
type Params struct {
	Page       int
	Year       string
	Category   string
	MaxResults int
}

// Categories lists the sub-catalogs a scanner accepts. An empty Allowed
// list accepts any non-empty value.
type Categories struct {
	Default string
	Allowed []string
}

// ParseParams validates raw once at the invocation boundary. category wins
// over chartType when both are present.
func ParseParams(raw map[string]string, cats Categories) (Params, error) {
	p := Params{Page: 1, Category: cats.Default}

	if v := strings.TrimSpace(raw[ParamPage]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Params{}, &ValidationError{Param: ParamPage, Value: v, Reason: "must be a positive integer"}
		}
		p.Page = n
	}

	if v := strings.TrimSpace(raw[ParamYear]); v != "" {
		if !yearExpr.MatchString(v) {
			return Params{}, &ValidationError{Param: ParamYear, Value: v, Reason: "must be 4 digits"}
		}
		p.Year = v
	}

	key, v := ParamCategory, strings.TrimSpace(raw[ParamCategory])
	if v == "" {
		key, v = ParamChartType, strings.TrimSpace(raw[ParamChartType])
	}
	if v != "" {
		if len(cats.Allowed) > 0 && !slices.Contains(cats.Allowed, v) {
			return Params{}, &ValidationError{
				Param:  key,
				Value:  v,
				Reason: "must be one of " + strings.Join(cats.Allowed, ", "),
			}
		}
		p.Category = v
	}

	if v := strings.TrimSpace(raw[ParamMaxResults]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Params{}, &ValidationError{Param: ParamMaxResults, Value: v, Reason: "must be a non-negative integer"}
		}
		p.MaxResults = n
	}

	return p, nil
}
