package view

import (
	"fmt"
	"testing"

	"github.com/conversationai/harassment-manager/internal/filters"
	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/conversationai/harassment-manager/internal/ranking"
	"github.com/conversationai/harassment-manager/internal/report"
	"github.com/conversationai/harassment-manager/internal/toxicity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems(n int) []models.ScoredItem {
	items := make([]models.ScoredItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, models.ScoredItem{
			Item:   models.SocialMediaItem{ID: fmt.Sprintf("item-%d", i)},
			Scores: map[string]float64{toxicity.AttributeToxicity: float64(n-i) / float64(n+1)},
		})
	}
	return items
}

func newTestController(itemCount int) (*Controller, *report.Store) {
	store := report.NewStore()
	c := NewController(store)
	c.SetItems(testItems(itemCount))
	return c, store
}

func TestPageResetRule(t *testing.T) {
	store := report.NewStore()
	c := NewController(store)
	c.SetPageSize(2)

	// Five items, scores 0.9 down to 0.5.
	items := []models.ScoredItem{}
	for i := 0; i < 5; i++ {
		items = append(items, models.ScoredItem{
			Item:   models.SocialMediaItem{ID: fmt.Sprintf("item-%d", i)},
			Scores: map[string]float64{toxicity.AttributeToxicity: 0.9 - float64(i)*0.1},
		})
	}
	c.SetItems(items)
	require.Equal(t, 3, c.NumPages())

	c.SetPageIndex(2)
	require.Equal(t, 2, c.PageIndex())

	// Narrowing to 3 items (2 pages) knocks page 2 out of range.
	c.SetFilters(filters.Criteria{
		ToxicityRanges: []filters.ToxicityRange{{MinScore: 0.65, MaxScore: 1}},
	})
	assert.Equal(t, 2, c.NumPages())
	assert.Equal(t, 0, c.PageIndex(), "out-of-range page resets to 0")

	// A filter that keeps the current page in range leaves it alone.
	c.SetFilters(filters.Criteria{})
	c.SetPageIndex(1)
	c.SetFilters(filters.Criteria{
		ToxicityRanges: []filters.ToxicityRange{{MinScore: 0.55, MaxScore: 1}},
	})
	assert.Equal(t, 2, c.NumPages())
	assert.Equal(t, 1, c.PageIndex(), "in-range page index is sticky")
}

func TestSetPageIndexClamps(t *testing.T) {
	c, _ := newTestController(5)
	c.SetPageSize(2)

	c.SetPageIndex(-3)
	assert.Equal(t, 0, c.PageIndex())

	c.SetPageIndex(99)
	assert.Equal(t, 2, c.PageIndex(), "clamped to last page")
}

func TestSelectionSurvivesResort(t *testing.T) {
	c, store := newTestController(6)

	page := c.CurrentPage()
	require.NotEmpty(t, page)
	selectedID := page[0].Item.ID
	c.ToggleSelection(selectedID)

	require.True(t, store.Contains(selectedID))

	c.SetSort(ranking.Recency)
	assert.True(t, c.IsSelected(selectedID), "selection keyed by identity, not position")

	c.SetSort(ranking.Popularity)
	assert.True(t, c.IsSelected(selectedID))
}

func TestSelectionSurvivesFilteringOut(t *testing.T) {
	c, _ := newTestController(4)

	page := c.CurrentPage()
	selectedID := page[0].Item.ID
	c.ToggleSelection(selectedID)

	// Filter everything out, then bring it back.
	c.SetFilters(filters.Criteria{
		RegexFilters: []filters.RegexFilter{{Pattern: "no such text", Include: true}},
	})
	assert.Equal(t, 0, c.FilteredCount())

	c.SetFilters(filters.Criteria{})
	assert.True(t, c.IsSelected(selectedID), "selection retained while item was hidden")
}

func TestSelectAllAffectsOnlyVisiblePage(t *testing.T) {
	c, store := newTestController(5)
	c.SetPageSize(2)

	c.SetPageIndex(0)
	c.SelectAllOnPage()

	assert.Equal(t, 2, store.Count(), "one batched add for the visible page")
	for _, item := range c.CurrentPage() {
		assert.True(t, item.Selected)
	}

	c.SetPageIndex(1)
	for _, item := range c.CurrentPage() {
		assert.False(t, item.Selected, "other pages untouched")
	}

	c.SetPageIndex(0)
	c.DeselectAllOnPage()
	assert.Equal(t, 0, store.Count())
}

func TestToggleSelectionUpdatesReport(t *testing.T) {
	c, store := newTestController(3)

	id := c.CurrentPage()[0].Item.ID
	c.ToggleSelection(id)
	assert.True(t, store.Contains(id))

	c.ToggleSelection(id)
	assert.False(t, store.Contains(id))
}

func TestExternalReportChangeSyncsSelection(t *testing.T) {
	c, store := newTestController(3)

	item := c.CurrentPage()[0]
	store.AddItems([]models.ScoredItem{item.ScoredItem})
	assert.True(t, c.IsSelected(item.Item.ID), "membership added elsewhere shows as selected")

	store.RemoveItems([]models.ScoredItem{item.ScoredItem})
	assert.False(t, c.IsSelected(item.Item.ID))
}

func TestReportClearResetsView(t *testing.T) {
	c, store := newTestController(10)
	c.SetPageSize(3)
	c.SetSort(ranking.Recency)
	c.SelectAllOnPage()
	c.SetFilters(filters.Criteria{RequireImage: true})
	c.SetPageIndex(0)

	store.Clear()

	assert.Equal(t, filters.Criteria{}, c.Filters())
	assert.Equal(t, ranking.Priority, c.Sort())
	assert.Equal(t, 0, c.PageIndex())
	assert.Equal(t, 0, store.Count())
	for _, item := range c.CurrentPage() {
		assert.False(t, item.Selected)
	}
}

func TestEndToEndFilterThenSort(t *testing.T) {
	store := report.NewStore()
	c := NewController(store)
	c.SetItems([]models.ScoredItem{
		{Item: models.SocialMediaItem{ID: "a"}, Scores: map[string]float64{toxicity.AttributeToxicity: 0.8}},
		{Item: models.SocialMediaItem{ID: "b"}, Scores: map[string]float64{toxicity.AttributeToxicity: 0.9}},
		{Item: models.SocialMediaItem{ID: "c"}, Scores: map[string]float64{toxicity.AttributeToxicity: 0.1}},
	})

	c.SetFilters(filters.Criteria{
		ToxicityRanges: []filters.ToxicityRange{{MinScore: 0.5, MaxScore: 1}},
	})
	c.SetSort(ranking.Priority)

	page := c.CurrentPage()
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Item.ID)
	assert.Equal(t, "a", page[1].Item.ID)
}
