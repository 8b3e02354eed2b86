// Package ranking orders scored comments for review. Sorting always operates
// on a copy; the caller's slice may be shared with other views and must never
// be reordered in place.
package ranking

import (
	"sort"

	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/conversationai/harassment-manager/internal/toxicity"
)

// Option selects the active sort policy.
type Option string

const (
	// Priority orders by toxicity score, most toxic first. This is the
	// default review order.
	Priority Option = "priority"
	// Recency orders by timestamp, newest first.
	Recency Option = "recency"
	// Popularity orders by engagement influence, most engaged-with first.
	Popularity Option = "popularity"
)

// InfluenceScore projects an item's engagement counters onto a single number.
// The sort treats it as opaque; absent counters contribute zero.
func InfluenceScore(item models.SocialMediaItem) float64 {
	return float64(item.FavoriteCount + item.ReplyCount + item.RetweetCount)
}

// Sort returns the items ordered by the given option, descending. The sort is
// stable and tied keys compare equal, keeping the ordering a valid total
// order for the underlying algorithm.
func Sort(items []models.ScoredItem, option Option) []models.ScoredItem {
	sorted := make([]models.ScoredItem, len(items))
	copy(sorted, items)

	compare := comparator(option)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compare(sorted[i], sorted[j]) > 0
	})
	return sorted
}

// comparator returns a three-way compare for the option: positive when a
// ranks above b, negative when below, zero on a tie.
func comparator(option Option) func(a, b models.ScoredItem) int {
	switch option {
	case Recency:
		return func(a, b models.ScoredItem) int {
			return compareFloat(
				float64(a.Item.CreatedAt.UnixMilli()),
				float64(b.Item.CreatedAt.UnixMilli()))
		}
	case Popularity:
		return func(a, b models.ScoredItem) int {
			return compareFloat(InfluenceScore(a.Item), InfluenceScore(b.Item))
		}
	default:
		threshold := toxicity.UnscoredPriorityThreshold(toxicity.Buckets())
		return func(a, b models.ScoredItem) int {
			return comparePriority(a, b, threshold)
		}
	}
}

// comparePriority orders by toxicity score. An unscored item sorts as if it
// scored exactly the unscored threshold, except that a scored item at the
// threshold still outranks it: a scored item outranks an unscored one iff its
// score is at least the threshold. The threshold comes from the bucket
// taxonomy, not a constant here, so reordering the taxonomy moves it.
func comparePriority(a, b models.ScoredItem, threshold float64) int {
	scoreA, scoredA := a.AttributeScore(toxicity.AttributeToxicity)
	scoreB, scoredB := b.AttributeScore(toxicity.AttributeToxicity)
	if !scoredA {
		scoreA = threshold
	}
	if !scoredB {
		scoreB = threshold
	}
	if c := compareFloat(scoreA, scoreB); c != 0 {
		return c
	}
	// Scored-at-threshold beats unscored; two unscored or two equal scored
	// items are a genuine tie.
	if scoredA && !scoredB {
		return 1
	}
	if !scoredA && scoredB {
		return -1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
