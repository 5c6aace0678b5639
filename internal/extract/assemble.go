package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CatalogScanner/internal/domain"
)

// DescriptionSeparator joins the secondary fields of a description.
const DescriptionSeparator = " / "

// ItemError describes a container that could not be assembled.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

var errNilContainer = errors.New("nil container")

// Assembler builds one CatalogItem from one item container.
type Assembler struct {
	Profile Profile
	// Now is used for synthetic ids; nil means time.Now.
	Now func() time.Time
}

// Assemble extracts and normalizes the fields of container. It reports
// ok=false when neither an identifier nor a title can be recovered.
func (a Assembler) Assemble(container *goquery.Selection, baseOrigin string, index int) (domain.CatalogItem, bool, error) {
	if container == nil || container.Length() == 0 {
		return domain.CatalogItem{}, false, errNilContainer
	}
	fields := a.Profile.Fields

	mainTitle := StripRank(CollapseSpace(fields.Field(container, FieldTitle)))
	subtitle := CollapseSpace(fields.Field(container, FieldSubtitle))
	cover := ToAbsoluteURL(fields.Field(container, FieldCover), baseOrigin)
	detail := ToAbsoluteURL(fields.Field(container, FieldDetail), baseOrigin)
	rating := fields.Field(container, FieldRating)
	ratingCount := ParseRatingCount(fields.Field(container, FieldRatingCount))
	rank := ParseRank(fields.Field(container, FieldRank))
	info := CollapseSpace(fields.Field(container, FieldInfo))

	id := a.containerID(container)
	if id == "" {
		id = a.Profile.subjectID(detail)
	}
	if id == "" {
		id = detail
	}
	if id == "" && mainTitle == "" {
		return domain.CatalogItem{}, false, nil
	}
	if id == "" {
		id = a.syntheticID(index)
	}

	item := domain.CatalogItem{
		ID:          id,
		Kind:        domain.KindURL,
		Title:       orDefault(mainTitle, domain.UnknownTitle),
		Subtitle:    subtitle,
		CoverURL:    cover,
		DetailURL:   detail,
		Rating:      orDefault(rating, "0"),
		RatingCount: ratingCount,
		Rank:        rank,
		ReleaseDate: ParseDate(info),
		MediaType:   ClassifyMediaType(info),
		Description: describe(subtitle, rank, rating, info),
		RawInfo:     info,
	}
	return item, true, nil
}

func (a Assembler) containerID(container *goquery.Selection) string {
	if a.Profile.IDAttr == "" {
		return ""
	}
	raw, ok := container.Attr(a.Profile.IDAttr)
	if !ok {
		return ""
	}
	raw = strings.TrimSpace(raw)
	if a.Profile.IDPrefix != "" {
		// An attribute without the expected prefix is some unrelated id.
		trimmed, found := strings.CutPrefix(raw, a.Profile.IDPrefix)
		if !found {
			return ""
		}
		raw = trimmed
	}
	return strings.TrimSpace(raw)
}

func (a Assembler) syntheticID(index int) string {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return fmt.Sprintf("%s_%d_%d", a.Profile.syntheticPrefix(), now().UnixMilli(), index)
}

func describe(subtitle, rank, rating, info string) string {
	parts := make([]string, 0, 4)
	if subtitle != "" {
		parts = append(parts, subtitle)
	}
	if rank != "" {
		parts = append(parts, "Rank "+rank)
	}
	if rating != "" {
		parts = append(parts, "Rating "+rating)
	}
	if info != "" {
		parts = append(parts, info)
	}
	return strings.Join(parts, DescriptionSeparator)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
