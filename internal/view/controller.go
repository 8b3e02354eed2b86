// Package view owns the review-table state: which filters and sort order are
// active, which page is showing, and which comments the user has selected for
// the report. It derives the visible list from the raw items; it never owns
// fetching or scoring.
package view

import (
	"sync"

	"github.com/conversationai/harassment-manager/internal/filters"
	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/conversationai/harassment-manager/internal/ranking"
	"github.com/conversationai/harassment-manager/internal/report"
	"github.com/sirupsen/logrus"
)

// DefaultPageSize matches the review table's row count.
const DefaultPageSize = 8

// Controller recomputes the filtered, sorted, paginated view whenever its
// inputs change. Selection is keyed by item identity so re-filtering or
// re-sorting never flips what the user has selected.
type Controller struct {
	mu       sync.Mutex
	report   *report.Store
	allItems []models.ScoredItem
	criteria filters.Criteria
	sort     ranking.Option
	sorted   []models.ScoredItem
	selected map[string]bool

	pageIndex int
	pageSize  int
}

// NewController creates a controller bound to the given report store. The
// controller subscribes to the store so that selection tracks membership and
// a cleared report resets the whole view.
func NewController(reportStore *report.Store) *Controller {
	c := &Controller{
		report:   reportStore,
		sort:     ranking.Priority,
		selected: make(map[string]bool),
		pageSize: DefaultPageSize,
	}
	reportStore.Subscribe(c)
	return c
}

// SetItems replaces the raw item set, recomputes the view, and re-derives
// selection from report membership.
func (c *Controller) SetItems(items []models.ScoredItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allItems = items
	c.syncSelectionLocked()
	c.recomputeLocked()
}

// SetFilters replaces the active filter criteria and recomputes.
func (c *Controller) SetFilters(criteria filters.Criteria) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria = criteria
	c.recomputeLocked()
}

// Filters returns the active filter criteria.
func (c *Controller) Filters() filters.Criteria {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.criteria
}

// SetSort replaces the active sort option and recomputes.
func (c *Controller) SetSort(option ranking.Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort = option
	c.recomputeLocked()
}

// Sort returns the active sort option.
func (c *Controller) Sort() ranking.Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sort
}

// SetPageSize changes the rows-per-page count and recomputes.
func (c *Controller) SetPageSize(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if size < 1 {
		size = 1
	}
	c.pageSize = size
	c.recomputeLocked()
}

// SetPageIndex moves to the given 0-based page, clamped into the valid range.
// Page state drives rendering, so out-of-range input clamps rather than
// erroring.
func (c *Controller) SetPageIndex(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageIndex = clampPage(index, c.numPagesLocked())
}

// PageIndex returns the current 0-based page.
func (c *Controller) PageIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageIndex
}

// NumPages returns the page count for the current filtered set.
func (c *Controller) NumPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numPagesLocked()
}

// FilteredCount returns the size of the filtered, sorted set.
func (c *Controller) FilteredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sorted)
}

// CurrentPage returns the visible slice of the filtered, sorted set with
// per-item selection state attached.
func (c *Controller) CurrentPage() []models.SelectableItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageItemsLocked()
}

// PageButtons returns the abbreviated page-number runs for the paginator.
func (c *Controller) PageButtons() (start, end []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PageLabels(c.pageIndex, c.numPagesLocked(), DefaultMaxVisiblePages)
}

// IsSelected reports whether the item with the given ID is selected.
func (c *Controller) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected[id]
}

// ToggleSelection flips the selection state of one item and mirrors the
// change into the report store.
func (c *Controller) ToggleSelection(id string) {
	c.mu.Lock()
	var toggled *models.ScoredItem
	for i := range c.allItems {
		if c.allItems[i].Item.ID == id {
			toggled = &c.allItems[i]
			break
		}
	}
	if toggled == nil {
		c.mu.Unlock()
		return
	}
	nowSelected := !c.selected[id]
	c.selected[id] = nowSelected
	item := *toggled
	c.mu.Unlock()

	// Report mutation happens outside the lock: the store notifies this
	// controller synchronously and OnChange re-locks.
	if nowSelected {
		c.report.AddItems([]models.ScoredItem{item})
	} else {
		c.report.RemoveItems([]models.ScoredItem{item})
	}
}

// SelectAllOnPage selects every enabled item on the visible page. Items on
// other pages keep their state. All newly selected items are pushed to the
// report in a single batched call.
func (c *Controller) SelectAllOnPage() {
	c.setPageSelection(true)
}

// DeselectAllOnPage clears selection for every item on the visible page,
// batching the report removal.
func (c *Controller) DeselectAllOnPage() {
	c.setPageSelection(false)
}

func (c *Controller) setPageSelection(selected bool) {
	c.mu.Lock()
	var changed []models.ScoredItem
	for _, item := range c.pageItemsLocked() {
		if item.Disabled || item.Selected == selected {
			continue
		}
		c.selected[item.Item.ID] = selected
		changed = append(changed, item.ScoredItem)
	}
	c.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	// Every toggled item moved the same direction, so one store call
	// covers the batch.
	if selected {
		c.report.AddItems(changed)
	} else {
		c.report.RemoveItems(changed)
	}
}

// OnChange implements report.Listener: selection is re-derived from report
// membership whenever the report contents change elsewhere.
func (c *Controller) OnChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncSelectionLocked()
}

// OnClear implements report.Listener: a discarded report resets filters,
// sort, selection and page position to their defaults.
func (c *Controller) OnClear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria = filters.Criteria{}
	c.sort = ranking.Priority
	c.selected = make(map[string]bool)
	c.pageIndex = 0
	c.recomputeLocked()
	logrus.Debug("Review view reset after report clear")
}

// recomputeLocked rebuilds the filtered, sorted list and applies the
// page-reset rule: the page index is sticky unless it falls out of range, in
// which case it snaps back to the first page.
func (c *Controller) recomputeLocked() {
	filtered := filters.Apply(c.allItems, c.criteria)
	c.sorted = ranking.Sort(filtered, c.sort)
	if c.pageIndex*c.pageSize >= len(c.sorted) {
		c.pageIndex = 0
	}
}

func (c *Controller) syncSelectionLocked() {
	c.selected = make(map[string]bool, len(c.allItems))
	for _, item := range c.allItems {
		if c.report.Contains(item.Item.ID) {
			c.selected[item.Item.ID] = true
		}
	}
}

func (c *Controller) pageItemsLocked() []models.SelectableItem {
	startIdx := c.pageIndex * c.pageSize
	if startIdx >= len(c.sorted) {
		return nil
	}
	endIdx := startIdx + c.pageSize
	if endIdx > len(c.sorted) {
		endIdx = len(c.sorted)
	}
	page := make([]models.SelectableItem, 0, endIdx-startIdx)
	for _, item := range c.sorted[startIdx:endIdx] {
		page = append(page, models.SelectableItem{
			ScoredItem: item,
			Selected:   c.selected[item.Item.ID],
		})
	}
	return page
}

func (c *Controller) numPagesLocked() int {
	if len(c.sorted) == 0 {
		return 0
	}
	return (len(c.sorted) + c.pageSize - 1) / c.pageSize
}

func clampPage(index, numPages int) int {
	if index < 0 {
		return 0
	}
	if numPages == 0 {
		return 0
	}
	if index > numPages-1 {
		return numPages - 1
	}
	return index
}
