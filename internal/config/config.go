package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"CatalogScanner/internal/extract"
)

const (
	configPathEnv = "CATALOG_SCANNER_CONFIG"
	logLevelEnv   = "CATALOG_SCANNER_LOG_LEVEL"
	userAgentEnv  = "CATALOG_SCANNER_USER_AGENT"

	// DefaultSiteID names the built-in bgm.tv anime browser profile.
	DefaultSiteID = "bangumi"

	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"
	defaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	HTTP    HTTPConfig    `yaml:"http"`
	Sites   []SiteConfig  `yaml:"sites"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig tunes the outbound transport. Retries happen inside the
// transport only.
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	Retries        int           `yaml:"retries"`
	RetryWait      time.Duration `yaml:"retryWait"`
	UserAgent      string        `yaml:"userAgent"`
	AcceptLanguage string        `yaml:"acceptLanguage"`
}

// SiteConfig describes one listing site and how its pages are addressed.
type SiteConfig struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	Version      string `yaml:"version"`
	FunctionName string `yaml:"functionName"`

	BaseURL string `yaml:"baseUrl"`
	// ListPath is appended to BaseURL; YearPath replaces it when a year is
	// requested and may contain the {year} placeholder.
	ListPath  string `yaml:"listPath"`
	YearPath  string `yaml:"yearPath"`
	SortParam string `yaml:"sortParam"`
	PageParam string `yaml:"pageParam"`

	Categories      []string `yaml:"categories"`
	DefaultCategory string   `yaml:"defaultCategory"`
	// Mixed names the two charts merged by the "mixed" category.
	Mixed []string `yaml:"mixed"`

	Selectors SelectorConfig `yaml:"selectors"`
	// Options are default invocation parameters, overridden per call.
	Options map[string]string `yaml:"options"`
}

// SelectorConfig overrides parts of the built-in extraction profile.
type SelectorConfig struct {
	Item              string             `yaml:"item"`
	IDAttr            string             `yaml:"idAttr"`
	IDPrefix          string             `yaml:"idPrefix"`
	SubjectPattern    string             `yaml:"subjectPattern"`
	SyntheticPrefix   string             `yaml:"syntheticPrefix"`
	DisableStructured bool               `yaml:"disableStructured"`
	Fields            extract.FieldTable `yaml:"fields"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// A file that cannot be read or parsed is logged and ignored.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			slog.Warn("config: falling back to defaults", "path", path, "error", err)
		} else {
			cfg = loaded
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// LoadFrom is Load for an explicit file. Unlike Load it reports a file that
// cannot be used.
func LoadFrom(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadFile merges the YAML file at path over the defaults.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse merges a YAML document over the defaults. Every configured site
// inherits the settings it leaves empty from the built-in profile.
func Parse(raw []byte) (Config, error) {
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := defaultConfig()
	sites := fileCfg.Sites
	fileCfg.Sites = nil
	if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("merge config: %w", err)
	}

	if len(sites) > 0 {
		cfg.Sites = make([]SiteConfig, 0, len(sites))
		for _, site := range sites {
			merged, err := withSiteDefaults(site)
			if err != nil {
				return Config{}, fmt.Errorf("site %s: %w", site.ID, err)
			}
			cfg.Sites = append(cfg.Sites, merged)
		}
	}
	return cfg, nil
}

// Site returns the site with the given id.
func (c Config) Site(id string) (SiteConfig, bool) {
	for _, s := range c.Sites {
		if s.ID == id {
			return s, true
		}
	}
	return SiteConfig{}, false
}

// Validate reports every problem found in the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive"))
	}
	if c.HTTP.Retries < 0 {
		errs = append(errs, fmt.Errorf("http.retries must not be negative"))
	}
	if len(c.Sites) == 0 {
		errs = append(errs, fmt.Errorf("no sites configured"))
	}

	seen := map[string]struct{}{}
	for i, s := range c.Sites {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("sites[%d]: id is empty", i))
			continue
		}
		if _, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Errorf("site %s: duplicate id", s.ID))
		}
		seen[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("site %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks addressing and compiles every selector of the site.
func (s SiteConfig) Validate() error {
	var errs []error

	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("baseUrl %q is not an absolute URL", s.BaseURL))
	}
	if s.DefaultCategory != "" && len(s.Categories) > 0 && !slices.Contains(s.Categories, s.DefaultCategory) {
		errs = append(errs, fmt.Errorf("defaultCategory %q is not listed in categories", s.DefaultCategory))
	}
	if len(s.Mixed) > 0 {
		if len(s.Mixed) != 2 {
			errs = append(errs, fmt.Errorf("mixed must name exactly two charts"))
		}
		for _, chart := range s.Mixed {
			if !slices.Contains(s.Categories, chart) {
				errs = append(errs, fmt.Errorf("mixed chart %q is not listed in categories", chart))
			}
		}
	}

	if strings.TrimSpace(s.Selectors.Item) == "" {
		errs = append(errs, fmt.Errorf("selectors.item is empty"))
	} else if _, err := cascadia.Compile(s.Selectors.Item); err != nil {
		errs = append(errs, fmt.Errorf("selectors.item %q: %w", s.Selectors.Item, err))
	}
	if s.Selectors.SubjectPattern != "" {
		if _, err := regexp.Compile(s.Selectors.SubjectPattern); err != nil {
			errs = append(errs, fmt.Errorf("selectors.subjectPattern: %w", err))
		}
	}
	if err := s.Selectors.Fields.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(userAgentEnv); v != "" {
		c.HTTP.UserAgent = v
	}
}

// withSiteDefaults fills the empty settings of site from the built-in
// profile. Field chains are merged by name so a site may override only some.
func withSiteDefaults(site SiteConfig) (SiteConfig, error) {
	fields := site.Selectors.Fields
	site.Selectors.Fields = nil
	own := site

	if err := mergo.Merge(&site, bangumiSite()); err != nil {
		return SiteConfig{}, err
	}
	site.Selectors.Fields = extract.DefaultFields().Merge(fields)

	// Charts belong to the category list they were declared with.
	if len(own.Categories) > 0 {
		site.Mixed = own.Mixed
		if own.DefaultCategory == "" {
			site.DefaultCategory = own.Categories[0]
		}
	}
	return site, nil
}

func bangumiSite() SiteConfig {
	return SiteConfig{
		ID:              DefaultSiteID,
		Title:           "Bangumi 动画浏览",
		Description:     "浏览 Bangumi 动画列表，支持按热度或排名排序、按年份筛选与翻页。",
		Version:         "1.0.1",
		FunctionName:    "fetchBangumiAnime",
		BaseURL:         "https://bgm.tv",
		ListPath:        "/anime/browser/",
		YearPath:        "/anime/browser/airtime/{year}",
		SortParam:       "sort",
		PageParam:       "page",
		Categories:      []string{"trends", "rank", "date", "title"},
		DefaultCategory: "trends",
		Mixed:           []string{"trends", "rank"},
		Selectors: SelectorConfig{
			Item:            "ul#browserItemList li.item",
			IDAttr:          "id",
			IDPrefix:        "item_",
			SubjectPattern:  extract.DefaultSubjectPattern,
			SyntheticPrefix: "bgm",
		},
	}
}

func defaultConfig() Config {
	site := bangumiSite()
	site.Selectors.Fields = extract.DefaultFields()

	return Config{
		Logging: LoggingConfig{Level: "info"},
		HTTP: HTTPConfig{
			Timeout:        20 * time.Second,
			Retries:        2,
			RetryWait:      500 * time.Millisecond,
			UserAgent:      defaultUserAgent,
			AcceptLanguage: defaultAcceptLanguage,
		},
		Sites: []SiteConfig{site},
	}
}
