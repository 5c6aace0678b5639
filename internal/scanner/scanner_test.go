package scanner

import (
	"context"
	"errors"
	"testing"

	"CatalogScanner/internal/domain"
)

type stubScanner struct {
	id     string
	cats   Categories
	calls  int
	params Params
}

func (s *stubScanner) Module() Module { return Module{ID: s.id, Title: s.id} }

func (s *stubScanner) Categories() Categories { return s.cats }

func (s *stubScanner) Scan(_ context.Context, p Params) ([]domain.CatalogItem, error) {
	s.calls++
	s.params = p
	return []domain.CatalogItem{{ID: "1", Title: "one"}}, nil
}

func TestParseParamsDefaults(t *testing.T) {
	t.Parallel()

	p, err := ParseParams(nil, Categories{Default: "trends"})
	if err != nil {
		t.Fatalf("ParseParams error: %v", err)
	}
	want := Params{Page: 1, Category: "trends"}
	if p != want {
		t.Fatalf("unexpected params: %+v", p)
	}
}

func TestParseParamsValues(t *testing.T) {
	t.Parallel()

	cats := Categories{Default: "trends", Allowed: []string{"trends", "rank", CategoryMixed}}
	p, err := ParseParams(map[string]string{
		ParamPage:       " 3 ",
		ParamYear:       "2024",
		ParamChartType:  "rank",
		ParamMaxResults: "10",
	}, cats)
	if err != nil {
		t.Fatalf("ParseParams error: %v", err)
	}
	want := Params{Page: 3, Year: "2024", Category: "rank", MaxResults: 10}
	if p != want {
		t.Fatalf("unexpected params: %+v", p)
	}

	p, err = ParseParams(map[string]string{ParamCategory: CategoryMixed, ParamChartType: "rank"}, cats)
	if err != nil {
		t.Fatalf("ParseParams error: %v", err)
	}
	if p.Category != CategoryMixed {
		t.Fatalf("category should win over chartType, got %q", p.Category)
	}
}

func TestParseParamsRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	cats := Categories{Default: "trends", Allowed: []string{"trends", "rank"}}
	cases := []struct {
		name  string
		raw   map[string]string
		param string
	}{
		{"short year", map[string]string{ParamYear: "24"}, ParamYear},
		{"long year", map[string]string{ParamYear: "20245"}, ParamYear},
		{"word year", map[string]string{ParamYear: "abcd"}, ParamYear},
		{"zero page", map[string]string{ParamPage: "0"}, ParamPage},
		{"word page", map[string]string{ParamPage: "two"}, ParamPage},
		{"negative max", map[string]string{ParamMaxResults: "-1"}, ParamMaxResults},
		{"unknown category", map[string]string{ParamCategory: "mixed"}, ParamCategory},
		{"unknown chart", map[string]string{ParamChartType: "collect"}, ParamChartType},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseParams(tc.raw, cats)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Param != tc.param {
				t.Fatalf("expected param %s, got %s", tc.param, vErr.Param)
			}
		})
	}
}

func TestRegistryInvoke(t *testing.T) {
	t.Parallel()

	stub := &stubScanner{id: "bangumi", cats: Categories{Default: "trends", Allowed: []string{"trends"}}}
	reg := NewRegistry()
	reg.Register(stub)

	items, err := reg.Invoke(context.Background(), "bangumi", map[string]string{ParamPage: "2"})
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if len(items) != 1 || stub.params.Page != 2 || stub.params.Category != "trends" {
		t.Fatalf("unexpected invocation: items=%v params=%+v", items, stub.params)
	}
}

func TestRegistryInvokeValidatesBeforeScan(t *testing.T) {
	t.Parallel()

	stub := &stubScanner{id: "bangumi"}
	reg := NewRegistry()
	reg.Register(stub)

	_, err := reg.Invoke(context.Background(), "bangumi", map[string]string{ParamYear: "99"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if stub.calls != 0 {
		t.Fatalf("scanner must not run on invalid input, ran %d times", stub.calls)
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Invoke(context.Background(), "missing", nil)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRegistryModulesSorted(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubScanner{id: "b"})
	reg.Register(&stubScanner{id: "a"})

	mods := reg.Modules()
	if len(mods) != 2 || mods[0].ID != "a" || mods[1].ID != "b" {
		t.Fatalf("unexpected modules: %+v", mods)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := error(&FetchError{URL: "https://bgm.tv/anime/browser/?sort=trends", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatalf("FetchError should unwrap to its cause")
	}
	if got := (&FetchError{URL: "u", Status: 503}).Error(); got != "fetch u: HTTP 503" {
		t.Fatalf("unexpected message: %s", got)
	}

	err = &ParseError{URL: "u", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("ParseError should unwrap to its cause")
	}
}
