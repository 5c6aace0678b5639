package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"CatalogScanner/internal/config"
	"CatalogScanner/internal/domain"
	"CatalogScanner/internal/extract"
	"CatalogScanner/internal/ports"
	"CatalogScanner/internal/scanner"
)

var errEmptyBody = errors.New("empty response body")

// ListingScanner fetches one listing page of a configured site and turns it
// into catalog items.
type ListingScanner struct {
	site       config.SiteConfig
	transport  ports.Transport
	extractor  *extract.Extractor
	headers    map[string]string
	baseOrigin string
	logger     *slog.Logger
}

var _ scanner.Scanner = (*ListingScanner)(nil)

// NewListingScanner builds a scanner for site. The site's selector settings
// are validated here so a bad profile fails at startup.
func NewListingScanner(site config.SiteConfig, httpCfg config.HTTPConfig, transport ports.Transport, logger *slog.Logger) (*ListingScanner, error) {
	if transport == nil {
		return nil, fmt.Errorf("site %s: transport is not configured", site.ID)
	}

	base, err := url.Parse(site.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("site %s: invalid base url %q", site.ID, site.BaseURL)
	}
	origin := base.Scheme + "://" + base.Host

	profile, err := profileFromConfig(site.Selectors)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.ID, err)
	}
	extractor := extract.NewExtractor(profile, logger)
	extractor.DisableStructured = site.Selectors.DisableStructured

	headers := map[string]string{"Referer": origin + "/"}
	if httpCfg.UserAgent != "" {
		headers["User-Agent"] = httpCfg.UserAgent
	}
	if httpCfg.AcceptLanguage != "" {
		headers["Accept-Language"] = httpCfg.AcceptLanguage
	}

	return &ListingScanner{
		site:       site,
		transport:  transport,
		extractor:  extractor,
		headers:    headers,
		baseOrigin: origin,
		logger:     logger,
	}, nil
}

// Module describes the scanner and its accepted parameters.
func (s *ListingScanner) Module() scanner.Module {
	params := []scanner.ParamSpec{
		{Name: scanner.ParamPage, Title: "页码", Type: "page", Description: "选择要加载的列表页码", Default: "1"},
		{Name: scanner.ParamYear, Title: "年份", Type: "input", Description: "按放送年份筛选，4 位数字"},
	}
	if cats := s.Categories(); len(cats.Allowed) > 0 {
		params = append(params, scanner.ParamSpec{
			Name:    scanner.ParamCategory,
			Title:   "排序",
			Type:    "enumeration",
			Default: cats.Default,
			Options: cats.Allowed,
		})
	}
	params = append(params, scanner.ParamSpec{
		Name: scanner.ParamMaxResults, Title: "最大条目数", Type: "count", Description: "0 表示不限制", Default: "0",
	})

	return scanner.Module{
		ID:           s.site.ID,
		Title:        s.site.Title,
		Description:  s.site.Description,
		Site:         s.listURL(),
		Version:      s.site.Version,
		FunctionName: s.site.FunctionName,
		Params:       params,
	}
}

// Categories lists the sort orders of the site, plus "mixed" when two
// charts are declared for it.
func (s *ListingScanner) Categories() scanner.Categories {
	allowed := append([]string(nil), s.site.Categories...)
	if len(s.site.Mixed) == 2 {
		allowed = append(allowed, scanner.CategoryMixed)
	}
	return scanner.Categories{Default: s.site.DefaultCategory, Allowed: allowed}
}

// Scan fetches the requested page. In mixed mode both charts are fetched
// concurrently and merged in chart order.
func (s *ListingScanner) Scan(ctx context.Context, params scanner.Params) ([]domain.CatalogItem, error) {
	if params.Category == scanner.CategoryMixed {
		return s.scanMixed(ctx, params)
	}
	return s.scanPage(ctx, s.extractor, params.Category, params)
}

func (s *ListingScanner) scanMixed(ctx context.Context, params scanner.Params) ([]domain.CatalogItem, error) {
	charts := s.site.Mixed
	if len(charts) == 0 {
		return nil, &scanner.ValidationError{Param: scanner.ParamCategory, Value: scanner.CategoryMixed, Reason: "site has no mixed charts"}
	}

	slots := make([][]domain.CatalogItem, len(charts))
	errs := make([]error, len(charts))

	var g errgroup.Group
	for i, chart := range charts {
		i, chart := i, chart
		g.Go(func() error {
			// Each chart gets its own synthetic id scope so the merge below
			// cannot mistake two id-less items for duplicates.
			items, err := s.scanPage(ctx, s.extractor.WithSyntheticScope(chart), chart, params)
			if err != nil {
				s.warn("chart failed", "chart", chart, "error", err)
				errs[i] = fmt.Errorf("chart %s: %w", chart, err)
				return nil
			}
			slots[i] = items
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(charts) {
		return nil, errors.Join(errs...)
	}

	merged := mergeUnique(slots)
	if params.MaxResults > 0 && len(merged) > params.MaxResults {
		merged = merged[:params.MaxResults]
	}
	s.debug("mixed charts merged", "charts", len(charts), "failed", failed, "items", len(merged))
	return merged, nil
}

func (s *ListingScanner) scanPage(ctx context.Context, extractor *extract.Extractor, category string, params scanner.Params) ([]domain.CatalogItem, error) {
	pageURL, err := s.pageURL(category, params)
	if err != nil {
		return nil, err
	}
	s.info("fetch listing", "url", pageURL)

	res, err := s.transport.Get(ctx, pageURL, s.headers)
	if err != nil {
		var fetchErr *scanner.FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &scanner.FetchError{URL: pageURL, Err: err}
	}
	if res.Status < 200 || res.Status >= 300 {
		return nil, &scanner.FetchError{URL: pageURL, Status: res.Status}
	}
	if len(bytes.TrimSpace(res.Data)) == 0 {
		return nil, &scanner.FetchError{URL: pageURL, Status: res.Status, Err: errEmptyBody}
	}

	result, err := extractor.Extract(res.Data, s.baseOrigin, params.MaxResults)
	if err != nil {
		return nil, &scanner.ParseError{URL: pageURL, Err: err}
	}
	s.info("listing parsed", "url", pageURL, "strategy", result.Strategy, "items", len(result.Items))
	return result.Items, nil
}

func (s *ListingScanner) listURL() string {
	u, _ := buildPageURL(s.site, s.site.DefaultCategory, scanner.Params{Page: 1})
	return u
}

func (s *ListingScanner) pageURL(category string, params scanner.Params) (string, error) {
	u, err := buildPageURL(s.site, category, params)
	if err != nil {
		return "", fmt.Errorf("site %s: %w", s.site.ID, err)
	}
	return u, nil
}

// buildPageURL addresses one page of a listing:
// <base><listPath>?<sort>=<category>[&<page>=N], with yearPath in place of
// listPath when a year is requested. Page 1 carries no page parameter.
func buildPageURL(site config.SiteConfig, category string, params scanner.Params) (string, error) {
	path := site.ListPath
	if params.Year != "" && site.YearPath != "" {
		path = strings.ReplaceAll(site.YearPath, "{year}", params.Year)
	}
	target := strings.TrimRight(site.BaseURL, "/") + path

	var query []string
	if category != "" && site.SortParam != "" {
		query = append(query, site.SortParam+"="+url.QueryEscape(category))
	}
	if params.Page > 1 && site.PageParam != "" {
		query = append(query, site.PageParam+"="+strconv.Itoa(params.Page))
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + strings.Join(query, "&")
	}

	if _, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("invalid page url %s: %w", target, err)
	}
	return target, nil
}

// mergeUnique concatenates slots in order, keeping the first item seen for
// each id.
func mergeUnique(slots [][]domain.CatalogItem) []domain.CatalogItem {
	total := 0
	for _, slot := range slots {
		total += len(slot)
	}

	merged := make([]domain.CatalogItem, 0, total)
	seen := make(map[string]struct{}, total)
	for _, slot := range slots {
		for _, item := range slot {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

func profileFromConfig(sel config.SelectorConfig) (extract.Profile, error) {
	profile := extract.DefaultProfile()
	if sel.Item != "" {
		profile.ItemSelector = sel.Item
	}
	if sel.IDAttr != "" {
		profile.IDAttr = sel.IDAttr
	}
	if sel.IDPrefix != "" {
		profile.IDPrefix = sel.IDPrefix
	}
	if sel.SyntheticPrefix != "" {
		profile.SyntheticPrefix = sel.SyntheticPrefix
	}
	if sel.SubjectPattern != "" {
		re, err := regexp.Compile(sel.SubjectPattern)
		if err != nil {
			return extract.Profile{}, fmt.Errorf("subject pattern: %w", err)
		}
		profile.SubjectPattern = re
	}
	profile.Fields = extract.DefaultFields().Merge(sel.Fields).Compile()

	if err := profile.Validate(); err != nil {
		return extract.Profile{}, err
	}
	return profile, nil
}

func (s *ListingScanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *ListingScanner) info(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *ListingScanner) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
