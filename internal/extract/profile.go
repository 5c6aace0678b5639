package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
)

// DefaultSubjectPattern captures the numeric subject id of a detail link.
const DefaultSubjectPattern = `/subject/(\d+)`

// Profile describes the markup of one listing site.
type Profile struct {
	// ItemSelector matches the repeated item containers, in document order.
	ItemSelector string
	// IDAttr is the container attribute holding the site id, e.g. "item_363957".
	IDAttr   string
	IDPrefix string
	// SubjectPattern extracts an id from a detail URL; group 1 is the id.
	SubjectPattern *regexp.Regexp
	// SyntheticPrefix starts ids made up for items without any identifier.
	SyntheticPrefix string
	Fields          FieldTable
}

// DefaultFields is the candidate table for the bgm.tv browser listing.
func DefaultFields() FieldTable {
	return FieldTable{
		FieldTitle: {
			Text(".inner h3 a.l"),
			Text("h3 a"),
			Attr("a.subjectCover img.cover", "alt"),
		},
		FieldSubtitle: {
			Text(".inner h3 small.grey"),
			Text("h3 small"),
		},
		FieldCover: {
			Attr("a.subjectCover img.cover", "src"),
			Attr("img.cover", "data-cfsrc"),
			Attr("img.cover", "data-src"),
			Attr("span.image img", "src"),
		},
		FieldDetail: {
			Attr("a.subjectCover", "href"),
			Attr(".inner h3 a.l", "href"),
			Attr("h3 a", "href"),
		},
		FieldRating: {
			Text(".inner p.rateInfo small.fade"),
			Text(".rateInfo .fade"),
		},
		FieldRatingCount: {
			Text(".inner p.rateInfo span.tip_j"),
			Text(".rateInfo .tip_j"),
		},
		FieldInfo: {
			Text(".inner p.info.tip"),
			Text("p.info"),
		},
		FieldRank: {
			Text(".inner span.rank"),
			Text("span.rank"),
		},
	}
}

// DefaultProfile is the built-in bgm.tv browser profile.
func DefaultProfile() Profile {
	return Profile{
		ItemSelector:    "ul#browserItemList li.item",
		IDAttr:          "id",
		IDPrefix:        "item_",
		SubjectPattern:  regexp.MustCompile(DefaultSubjectPattern),
		SyntheticPrefix: "bgm",
		Fields:          DefaultFields().Compile(),
	}
}

// Validate checks that the profile can drive a DOM traversal.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ItemSelector) == "" {
		return fmt.Errorf("profile: item selector is empty")
	}
	if _, err := cascadia.Compile(p.ItemSelector); err != nil {
		return fmt.Errorf("profile: item selector %q: %w", p.ItemSelector, err)
	}
	if err := p.Fields.Validate(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	return nil
}

func (p Profile) subjectID(link string) string {
	if p.SubjectPattern == nil || link == "" {
		return ""
	}
	m := p.SubjectPattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func (p Profile) syntheticPrefix() string {
	if p.SyntheticPrefix == "" {
		return "item"
	}
	return p.SyntheticPrefix
}
