package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CatalogScanner/internal/config"
	"CatalogScanner/internal/domain"
	"CatalogScanner/internal/infrastructure/transport"
	"CatalogScanner/internal/ports"
	"CatalogScanner/internal/scanner"
)

func testSite(baseURL string) config.SiteConfig {
	cfg, err := config.Parse([]byte("sites:\n  - id: bangumi\n    baseUrl: " + baseURL + "\n"))
	if err != nil {
		panic(err)
	}
	site, _ := cfg.Site("bangumi")
	return site
}

func listingPage(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul id="browserItemList">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<li id="item_%d" class="item"><a href="/subject/%d" class="subjectCover"><img src="//lain.bgm.tv/pic/%d.jpg" class="cover"></a>`+
			`<div class="inner"><h3><a href="/subject/%d" class="l">Title %d</a></h3><p class="info tip">2024年4月</p></div></li>`, id, id, id, id, id)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

type fakeResponse struct {
	res   ports.Response
	err   error
	delay time.Duration
}

type fakeTransport struct {
	mu      sync.Mutex
	pages   map[string]fakeResponse
	calls   []string
	headers map[string]string
}

func (f *fakeTransport) Get(ctx context.Context, url string, headers map[string]string) (ports.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.headers = headers
	page, ok := f.pages[url]
	f.mu.Unlock()

	if page.delay > 0 {
		time.Sleep(page.delay)
	}
	if !ok {
		return ports.Response{Status: http.StatusNotFound}, nil
	}
	return page.res, page.err
}

func ok(html string) fakeResponse {
	return fakeResponse{res: ports.Response{Data: []byte(html), Status: http.StatusOK}}
}

func newTestScanner(t *testing.T, tr ports.Transport) *ListingScanner {
	t.Helper()
	sc, err := NewListingScanner(testSite("https://bgm.tv"), config.HTTPConfig{UserAgent: "UA", AcceptLanguage: "zh-CN"}, tr, nil)
	if err != nil {
		t.Fatalf("NewListingScanner error: %v", err)
	}
	return sc
}

func ids(items []domain.CatalogItem) string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return strings.Join(out, ",")
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	site := testSite("https://bgm.tv/")
	cases := []struct {
		category string
		params   scanner.Params
		want     string
	}{
		{"trends", scanner.Params{Page: 1}, "https://bgm.tv/anime/browser/?sort=trends"},
		{"trends", scanner.Params{Page: 2}, "https://bgm.tv/anime/browser/?sort=trends&page=2"},
		{"trends", scanner.Params{Page: 1, Year: "2024"}, "https://bgm.tv/anime/browser/airtime/2024?sort=trends"},
		{"rank", scanner.Params{Page: 3, Year: "2023"}, "https://bgm.tv/anime/browser/airtime/2023?sort=rank&page=3"},
	}

	for _, tc := range cases {
		got, err := buildPageURL(site, tc.category, tc.params)
		if err != nil {
			t.Fatalf("buildPageURL returned error: %v", err)
		}
		if got != tc.want {
			t.Fatalf("buildPageURL(%s, %+v) = %s, want %s", tc.category, tc.params, got, tc.want)
		}
	}
}

func TestListingScannerModule(t *testing.T) {
	t.Parallel()

	mod := newTestScanner(t, &fakeTransport{}).Module()
	if mod.ID != "bangumi" || mod.Version != "1.0.1" {
		t.Fatalf("unexpected module: %+v", mod)
	}
	if mod.Site != "https://bgm.tv/anime/browser/?sort=trends" {
		t.Fatalf("unexpected site: %s", mod.Site)
	}
	if mod.Params[0].Name != scanner.ParamPage || mod.Params[0].Default != "1" {
		t.Fatalf("first param should be page with default 1: %+v", mod.Params[0])
	}

	cats := newTestScanner(t, &fakeTransport{}).Categories()
	if cats.Default != "trends" || cats.Allowed[len(cats.Allowed)-1] != scanner.CategoryMixed {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func TestListingScannerScanOverHTTP(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotPath string
		gotRef  string
		gotLang string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.RequestURI()
		gotRef = r.Header.Get("Referer")
		gotLang = r.Header.Get("Accept-Language")
		mu.Unlock()
		_, _ = w.Write([]byte(listingPage(11, 12, 13)))
	}))
	defer server.Close()

	httpCfg := config.HTTPConfig{Timeout: time.Second, UserAgent: "CatalogScanner/test", AcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.8"}
	sc, err := NewListingScanner(testSite(server.URL), httpCfg, transport.NewRestyTransport(httpCfg, nil), nil)
	if err != nil {
		t.Fatalf("NewListingScanner error: %v", err)
	}

	items, err := sc.Scan(context.Background(), scanner.Params{Page: 2, Year: "2024", Category: "rank"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/anime/browser/airtime/2024?sort=rank&page=2" {
		t.Fatalf("unexpected request uri: %s", gotPath)
	}
	if gotRef != server.URL+"/" || gotLang != "zh-CN,zh;q=0.9,en;q=0.8" {
		t.Fatalf("unexpected headers: referer=%s lang=%s", gotRef, gotLang)
	}
	if ids(items) != "11,12,13" {
		t.Fatalf("unexpected ids: %s", ids(items))
	}
	if items[0].DetailURL != server.URL+"/subject/11" {
		t.Fatalf("detail url not absolute: %s", items[0].DetailURL)
	}
	if items[0].CoverURL != "https://lain.bgm.tv/pic/11.jpg" {
		t.Fatalf("unexpected cover: %s", items[0].CoverURL)
	}
	if items[0].ReleaseDate != "2024-04-01" {
		t.Fatalf("unexpected release date: %s", items[0].ReleaseDate)
	}
}

func TestListingScannerMaxResults(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{pages: map[string]fakeResponse{
		"https://bgm.tv/anime/browser/?sort=trends": ok(listingPage(1, 2, 3, 4, 5, 6)),
	}}
	items, err := newTestScanner(t, tr).Scan(context.Background(), scanner.Params{Page: 1, Category: "trends", MaxResults: 4})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if ids(items) != "1,2,3,4" {
		t.Fatalf("unexpected ids: %s", ids(items))
	}
	if tr.headers["User-Agent"] != "UA" || tr.headers["Referer"] != "https://bgm.tv/" {
		t.Fatalf("unexpected headers: %v", tr.headers)
	}
}

func TestListingScannerFetchFailures(t *testing.T) {
	t.Parallel()

	const pageURL = "https://bgm.tv/anime/browser/?sort=trends"
	cause := errors.New("connection refused")
	cases := []struct {
		name   string
		page   fakeResponse
		status int
		cause  error
	}{
		{"server error", fakeResponse{res: ports.Response{Data: []byte("oops"), Status: 503}}, 503, nil},
		{"redirect", fakeResponse{res: ports.Response{Data: []byte("moved"), Status: 302}}, 302, nil},
		{"empty body", fakeResponse{res: ports.Response{Data: []byte("  \n"), Status: 200}}, 200, errEmptyBody},
		{"transport error", fakeResponse{err: cause}, 0, cause},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr := &fakeTransport{pages: map[string]fakeResponse{pageURL: tc.page}}
			_, err := newTestScanner(t, tr).Scan(context.Background(), scanner.Params{Page: 1, Category: "trends"})

			var fetchErr *scanner.FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fetchErr.URL != pageURL || fetchErr.Status != tc.status {
				t.Fatalf("unexpected fetch error: %+v", fetchErr)
			}
			if tc.cause != nil && !errors.Is(err, tc.cause) {
				t.Fatalf("expected cause %v, got %v", tc.cause, err)
			}
		})
	}
}

type brokenLoader struct{}

func (brokenLoader) Load([]byte) (*goquery.Document, error) { return nil, errors.New("engine unavailable") }

func (brokenLoader) Release(*goquery.Document) {}

func TestListingScannerParseFailure(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{pages: map[string]fakeResponse{
		"https://bgm.tv/anime/browser/?sort=trends": ok(listingPage(1)),
	}}
	sc := newTestScanner(t, tr)
	sc.extractor.Loader = brokenLoader{}

	_, err := sc.Scan(context.Background(), scanner.Params{Page: 1, Category: "trends"})
	var parseErr *scanner.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.URL != "https://bgm.tv/anime/browser/?sort=trends" {
		t.Fatalf("unexpected url: %s", parseErr.URL)
	}
}

func TestListingScannerMixed(t *testing.T) {
	t.Parallel()

	trends := ok(listingPage(1, 2, 3))
	trends.delay = 30 * time.Millisecond
	tr := &fakeTransport{pages: map[string]fakeResponse{
		"https://bgm.tv/anime/browser/?sort=trends": trends,
		"https://bgm.tv/anime/browser/?sort=rank":   ok(listingPage(3, 4)),
	}}
	sc := newTestScanner(t, tr)

	items, err := sc.Scan(context.Background(), scanner.Params{Page: 1, Category: scanner.CategoryMixed})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if ids(items) != "1,2,3,4" {
		t.Fatalf("results must follow chart order and drop duplicates, got %s", ids(items))
	}
	if len(tr.calls) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(tr.calls))
	}

	items, err = sc.Scan(context.Background(), scanner.Params{Page: 1, Category: scanner.CategoryMixed, MaxResults: 3})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if ids(items) != "1,2,3" {
		t.Fatalf("unexpected truncated ids: %s", ids(items))
	}
}

func TestListingScannerMixedIsolatesFailures(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{pages: map[string]fakeResponse{
		"https://bgm.tv/anime/browser/?sort=trends&page=2": {err: errors.New("timeout")},
		"https://bgm.tv/anime/browser/?sort=rank&page=2":   ok(listingPage(7, 8)),
	}}
	items, err := newTestScanner(t, tr).Scan(context.Background(), scanner.Params{Page: 2, Category: scanner.CategoryMixed})
	if err != nil {
		t.Fatalf("one failing chart must not fail the scan: %v", err)
	}
	if ids(items) != "7,8" {
		t.Fatalf("unexpected ids: %s", ids(items))
	}
}

func TestListingScannerMixedAllFail(t *testing.T) {
	t.Parallel()

	_, err := newTestScanner(t, &fakeTransport{}).Scan(context.Background(), scanner.Params{Page: 1, Category: scanner.CategoryMixed})
	var fetchErr *scanner.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Status != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", fetchErr.Status)
	}
}

func TestNewListingScannerRejectsBadSelectors(t *testing.T) {
	t.Parallel()

	site := testSite("https://bgm.tv")
	site.Selectors.Item = "li["
	if _, err := NewListingScanner(site, config.HTTPConfig{}, &fakeTransport{}, nil); err == nil {
		t.Fatalf("expected error for invalid item selector")
	}

	site = testSite("not a url")
	if _, err := NewListingScanner(site, config.HTTPConfig{}, &fakeTransport{}, nil); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

func TestStrategySourceBrowse(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{pages: map[string]fakeResponse{
		"https://bgm.tv/anime/browser/?sort=rank&page=2": ok(listingPage(5, 6)),
	}}
	sc := newTestScanner(t, tr)
	reg := scanner.NewRegistry()
	reg.Register(sc)

	site := testSite("https://bgm.tv")
	site.Options = map[string]string{scanner.ParamCategory: "rank", scanner.ParamPage: "9"}
	src := NewStrategySource(reg, []config.SiteConfig{site}, nil)

	items, err := src.Browse(context.Background(), "bangumi", map[string]string{scanner.ParamPage: "2"})
	if err != nil {
		t.Fatalf("Browse error: %v", err)
	}
	if ids(items) != "5,6" {
		t.Fatalf("unexpected ids: %s", ids(items))
	}

	if _, err := src.Browse(context.Background(), "anidb", nil); !errors.Is(err, scanner.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}

	_, err = src.Browse(context.Background(), "bangumi", map[string]string{scanner.ParamYear: "24"})
	var vErr *scanner.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("validation must happen before any request, got %d calls", len(tr.calls))
	}

	if mods := src.Modules(); len(mods) != 1 || mods[0].ID != "bangumi" {
		t.Fatalf("unexpected modules: %+v", mods)
	}
}

func TestListingScannerMixedKeepsDistinctSyntheticIDs(t *testing.T) {
	t.Parallel()

	page := func(title string) fakeResponse {
		return ok(`<html><body><ul id="browserItemList"><li class="item"><div class="inner"><h3><a class="l">` +
			title + `</a></h3></div></li></ul></body></html>`)
	}
	tr := &fakeTransport{pages: map[string]fakeResponse{
		"https://bgm.tv/anime/browser/?sort=trends": page("Only in trends"),
		"https://bgm.tv/anime/browser/?sort=rank":   page("Only in rank"),
	}}
	sc := newTestScanner(t, tr)
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	sc.extractor.Now = func() time.Time { return now }

	items, err := sc.Scan(context.Background(), scanner.Params{Page: 1, Category: scanner.CategoryMixed})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 distinct items, got %d: %s", len(items), ids(items))
	}
	wantTrends := fmt.Sprintf("bgm_trends_%d_0", now.UnixMilli())
	wantRank := fmt.Sprintf("bgm_rank_%d_0", now.UnixMilli())
	if items[0].ID != wantTrends || items[1].ID != wantRank {
		t.Fatalf("unexpected ids: %s", ids(items))
	}
	if items[0].Title != "Only in trends" || items[1].Title != "Only in rank" {
		t.Fatalf("unexpected titles: %q, %q", items[0].Title, items[1].Title)
	}
}
