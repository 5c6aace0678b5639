package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"

	"CatalogScanner/internal/domain"
)

// ToAbsoluteURL resolves protocol-relative and site-relative references.
// Anything else, including already absolute URLs, is returned unchanged.
func ToAbsoluteURL(raw, baseOrigin string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return strings.TrimRight(baseOrigin, "/") + raw
	default:
		return raw
	}
}

var (
	ymdCJKExpr = regexp.MustCompile(`(?:^|\D)(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})`)
	ymdSepExpr = regexp.MustCompile(`(?:^|\D)(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:\D|$)`)
	ymCJKExpr  = regexp.MustCompile(`(?:^|\D)(\d{4})\s*年\s*(\d{1,2})\s*月`)
	ymSepExpr  = regexp.MustCompile(`(?:^|\D)(\d{4})[-/.](\d{1,2})(?:\D|$)`)
	digitsExpr = regexp.MustCompile(`\d+`)
	seasonExpr = regexp.MustCompile(`(?i)(\d{4})\s*年?\s*(冬|春|夏|秋|winter|spring|summer|autumn|fall)`)
)

var seasonMonth = map[string]int{
	"冬": 1, "winter": 1,
	"春": 4, "spring": 4,
	"夏": 7, "summer": 7,
	"秋": 10, "autumn": 10, "fall": 10,
}

// ParseDate pulls the first recognizable release date out of an info line
// and renders it as YYYY-MM-DD. Partial dates are padded: month-only to the
// first of the month, year-only to January 1st, seasons to their first month.
// It returns "" when nothing matches.
func ParseDate(info string) string {
	s := width.Narrow.String(info)
	if strings.TrimSpace(s) == "" {
		return ""
	}

	for _, re := range []*regexp.Regexp{ymdCJKExpr, ymdSepExpr} {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			if d, ok := formatDate(m[1], m[2], m[3]); ok {
				return d
			}
		}
	}
	for _, re := range []*regexp.Regexp{ymCJKExpr, ymSepExpr} {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			if d, ok := formatDate(m[1], m[2], "1"); ok {
				return d
			}
		}
	}
	if y := bareYear(s); y != "" {
		return y + "-01-01"
	}
	if m := seasonExpr.FindStringSubmatch(s); m != nil {
		month := seasonMonth[strings.ToLower(m[2])]
		return fmt.Sprintf("%s-%02d-01", m[1], month)
	}
	return ""
}

func formatDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil || y < 1000 {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
}

// bareYear finds a four digit year that is not the head of a longer date
// (year-month, year-month-day) or of a season expression.
func bareYear(s string) string {
	for _, loc := range digitsExpr.FindAllStringIndex(s, -1) {
		if loc[1]-loc[0] != 4 {
			continue
		}
		year := s[loc[0]:loc[1]]
		if episodeNumber(s, loc) {
			continue
		}
		rest := strings.TrimLeft(s[loc[1]:], " \t")

		if after, ok := strings.CutPrefix(rest, "年"); ok {
			after = strings.TrimLeft(after, " \t")
			if startsWithDigit(after) || startsWithSeason(after) {
				continue
			}
			return year
		}

		n, _ := strconv.Atoi(year)
		if n < 1900 || n > 2099 {
			continue
		}
		if len(rest) > 1 && strings.ContainsRune("-/.", rune(rest[0])) && startsWithDigit(rest[1:]) {
			continue
		}
		if startsWithSeason(rest) {
			continue
		}
		// Reject numbers glued to ASCII letters, e.g. "A2025" or "1920x1080".
		if loc[0] > 0 && isASCIIAlnum(s[loc[0]-1]) {
			continue
		}
		if loc[1] < len(s) && isASCIIAlnum(s[loc[1]]) {
			continue
		}
		return year
	}
	return ""
}

// episodeNumber reports whether the digits at loc are an ordinal such as
// 第2024话 rather than a year.
func episodeNumber(s string, loc []int) bool {
	prev, _ := utf8.DecodeLastRuneInString(strings.TrimRight(s[:loc[0]], " \t"))
	if prev == '第' {
		return true
	}
	next, _ := utf8.DecodeRuneInString(strings.TrimLeft(s[loc[1]:], " \t"))
	return strings.ContainsRune("话話集回期", next)
}

func isASCIIAlnum(b byte) bool {
	return b < utf8.RuneSelf && (unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b)))
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func startsWithSeason(s string) bool {
	lower := strings.ToLower(s)
	for token := range seasonMonth {
		if strings.HasPrefix(lower, token) {
			return true
		}
	}
	return false
}

var ratingCountExpr = regexp.MustCompile(`(?i)[(（]\s*(\d[\d,]*)\s*(?:人评分|人評分|人评价|people rated|ratings?|votes?)\s*[)）]`)

// ParseRatingCount reads the vote count from a "(N人评分)" style fragment.
// It returns 0 when no such fragment exists.
func ParseRatingCount(text string) int {
	m := ratingCountExpr.FindStringSubmatch(width.Narrow.String(text))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

var movieTokens = []string{"剧场版", "劇場版", "电影", "電影", "映画", "movie", "film", "theatrical"}

// ClassifyMediaType maps an info line to a coarse media type.
func ClassifyMediaType(info string) domain.MediaType {
	lower := strings.ToLower(info)
	for _, token := range movieTokens {
		if strings.Contains(lower, token) {
			return domain.MediaMovie
		}
	}
	return domain.MediaTV
}

var rankPrefixExpr = regexp.MustCompile(`^\s*\d+\.\s+`)

// StripRank removes a leading "N. " ordinal some listings prepend to titles.
func StripRank(title string) string {
	return strings.TrimSpace(rankPrefixExpr.ReplaceAllString(title, ""))
}

// ParseRank returns the first run of digits of a rank badge ("Rank 12" -> "12").
func ParseRank(text string) string {
	return digitsExpr.FindString(width.Narrow.String(text))
}

// CollapseSpace trims s and folds whitespace runs to a single space.
func CollapseSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
