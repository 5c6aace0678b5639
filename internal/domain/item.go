package domain

// ItemKind marks which extraction strategy produced a record.
type ItemKind string

const (
	KindURL        ItemKind = "url"
	KindStructured ItemKind = "structured"
)

// MediaType is the coarse classification inferred from the info line.
type MediaType string

const (
	MediaTV    MediaType = "tv"
	MediaMovie MediaType = "movie"
)

// UnknownTitle replaces a title that could not be extracted.
const UnknownTitle = "未知标题"

// CatalogItem is one normalized entry of a catalog listing page.
// It is built once per source element and treated as a value afterwards.
type CatalogItem struct {
	ID          string    `json:"id"`
	Kind        ItemKind  `json:"type"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	CoverURL    string    `json:"posterPath"`
	DetailURL   string    `json:"link"`
	Rating      string    `json:"rating"`
	RatingCount int       `json:"ratingCount"`
	Rank        string    `json:"rank,omitempty"`
	ReleaseDate string    `json:"releaseDate"`
	MediaType   MediaType `json:"mediaType"`
	Description string    `json:"description"`
	RawInfo     string    `json:"raw_info"`
}
