// Package filters provides the pure predicates and the composer used to
// narrow a set of scored comments. All functions are side-effect free:
// items in, items out, input never mutated.
package filters

import (
	"regexp"
	"strings"
	"time"

	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/conversationai/harassment-manager/internal/toxicity"
)

// ToxicityRange selects comments whose TOXICITY score falls in
// [MinScore, MaxScore). A MaxScore of exactly 1 closes the interval, since
// scores are capped at 1; every other upper bound is exclusive so adjacent
// ranges never double-count a boundary score. IncludeUnscored additionally
// admits comments with no TOXICITY score at all.
type ToxicityRange struct {
	MinScore        float64 `json:"min_score"`
	MaxScore        float64 `json:"max_score"`
	IncludeUnscored bool    `json:"include_unscored"`
}

// RegexFilter matches a case-insensitive pattern against a comment's text and
// author fields. Include controls polarity: an include filter requires the
// pattern to be found, an exclude filter requires it to be absent.
type RegexFilter struct {
	Pattern string `json:"pattern"`
	Include bool   `json:"include"`
}

// DateRange is a closed interval over item timestamps, in unix milliseconds.
type DateRange struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// Criteria is the full filter configuration. Every present category tightens
// the result; an absent category imposes no constraint.
type Criteria struct {
	ToxicityRanges  []ToxicityRange
	RegexFilters    []RegexFilter
	DateRange       *DateRange
	RequireImage    bool
	RequireVerified bool
}

// MatchesToxicityRange reports whether the item falls in any of the active
// ranges (logical OR). Unscored items match iff at least one active range has
// IncludeUnscored set. An empty range list matches nothing; callers treat an
// absent list as "no constraint" before getting here.
func MatchesToxicityRange(item models.ScoredItem, ranges []ToxicityRange) bool {
	score, scored := item.AttributeScore(toxicity.AttributeToxicity)
	for _, r := range ranges {
		if !scored {
			if r.IncludeUnscored {
				return true
			}
			continue
		}
		if score < r.MinScore {
			continue
		}
		if score < r.MaxScore || (r.MaxScore == 1 && score == 1) {
			return true
		}
	}
	return false
}

// MatchesRegex reports whether the item satisfies every filter in the list
// (logical AND). Each pattern is searched case-insensitively across the
// comment text, author display name and author handle. An empty list always
// matches.
func MatchesRegex(item models.ScoredItem, regexFilters []RegexFilter) bool {
	for _, f := range regexFilters {
		if found(item.Item, f.Pattern) != f.Include {
			return false
		}
	}
	return true
}

func found(item models.SocialMediaItem, pattern string) bool {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		// Invalid user patterns degrade to a literal substring search
		// rather than failing the whole filter pass.
		needle := strings.ToLower(pattern)
		return strings.Contains(strings.ToLower(item.Text), needle) ||
			strings.Contains(strings.ToLower(item.AuthorName), needle) ||
			strings.Contains(strings.ToLower(item.AuthorScreenName), needle)
	}
	return re.MatchString(item.Text) ||
		re.MatchString(item.AuthorName) ||
		re.MatchString(item.AuthorScreenName)
}

// MatchesDate reports whether the item's timestamp lies inside the closed
// interval [StartMs, EndMs]. Items whose timestamp failed to normalize (zero
// time) never match.
func MatchesDate(item models.ScoredItem, dateRange DateRange) bool {
	if item.Item.CreatedAt.IsZero() {
		return false
	}
	ms := item.Item.CreatedAt.UnixMilli()
	return ms >= dateRange.StartMs && ms <= dateRange.EndMs
}

// HasImage reports whether the item carries an image attachment.
func HasImage(item models.ScoredItem) bool {
	return item.Item.HasImage
}

// IsVerified reports whether the item's author is a verified account.
func IsVerified(item models.ScoredItem) bool {
	return item.Item.Verified
}

// Apply runs every present filter category over the items and returns the
// survivors in their original order as a new slice. Categories combine with
// logical AND; ordering is left to the sort stage.
func Apply(items []models.ScoredItem, criteria Criteria) []models.ScoredItem {
	filtered := make([]models.ScoredItem, 0, len(items))
	for _, item := range items {
		if len(criteria.ToxicityRanges) > 0 && !MatchesToxicityRange(item, criteria.ToxicityRanges) {
			continue
		}
		if !MatchesRegex(item, criteria.RegexFilters) {
			continue
		}
		if criteria.DateRange != nil && !MatchesDate(item, *criteria.DateRange) {
			continue
		}
		if criteria.RequireImage && !HasImage(item) {
			continue
		}
		if criteria.RequireVerified && !IsVerified(item) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// RangeForBucket converts a taxonomy bucket into the equivalent filter range,
// used when the selected buckets drive the toxicity dropdown.
func RangeForBucket(b toxicity.Bucket) ToxicityRange {
	return ToxicityRange{
		MinScore:        b.MinScore,
		MaxScore:        b.MaxScore,
		IncludeUnscored: b.IncludeUnscored,
	}
}

// DefaultDateRange returns the trailing window ending now, the range shown
// when a user first lands on the review view.
func DefaultDateRange(window time.Duration) DateRange {
	now := time.Now()
	return DateRange{
		StartMs: now.Add(-window).UnixMilli(),
		EndMs:   now.UnixMilli(),
	}
}
