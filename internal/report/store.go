// Package report holds the mutable "selected for report" collection. The
// review view reads membership to derive selection state and writes to it as
// the user curates; interested components subscribe to membership changes.
package report

import (
	"sync"
	"time"

	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Action is a platform action the user wants taken on report members when the
// report is finalized.
type Action string

const (
	ActionNone        Action = "none"
	ActionBlock       Action = "block"
	ActionMute        Action = "mute"
	ActionHideReplies Action = "hide_replies"
)

// Snapshot is a finalized, immutable view of the report, ready for archival
// or notification.
type Snapshot struct {
	ReportID  string              `json:"report_id"`
	CreatedAt time.Time           `json:"created_at"`
	Context   string              `json:"context,omitempty"`
	Action    Action              `json:"action"`
	Items     []models.ScoredItem `json:"items"`
}

// Listener receives report lifecycle signals. OnChange fires after any
// membership or metadata mutation; OnClear fires when the whole report is
// discarded and consumers must drop derived state.
type Listener interface {
	OnChange()
	OnClear()
}

// Store is the in-memory report collection. Membership is keyed by item ID;
// adding an item twice is a no-op.
type Store struct {
	mu        sync.RWMutex
	items     map[string]models.ScoredItem
	order     []string
	context   string
	action    Action
	listeners []Listener
}

// NewStore creates an empty report.
func NewStore() *Store {
	return &Store{
		items:  make(map[string]models.ScoredItem),
		action: ActionNone,
	}
}

// Subscribe registers a listener for change and clear signals. Not safe to
// call concurrently with notification delivery from the same goroutine tree.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// AddItems inserts the given items into the report, preserving insertion
// order and skipping items already present. One change signal fires for the
// whole batch.
func (s *Store) AddItems(items []models.ScoredItem) {
	s.mu.Lock()
	added := 0
	for _, item := range items {
		if _, ok := s.items[item.Item.ID]; ok {
			continue
		}
		s.items[item.Item.ID] = item
		s.order = append(s.order, item.Item.ID)
		added++
	}
	s.mu.Unlock()

	if added > 0 {
		logrus.Debugf("Added %d comments to report", added)
		s.notifyChange()
	}
}

// RemoveItems drops the given items from the report. One change signal fires
// for the whole batch.
func (s *Store) RemoveItems(items []models.ScoredItem) {
	s.mu.Lock()
	removed := 0
	for _, item := range items {
		if _, ok := s.items[item.Item.ID]; !ok {
			continue
		}
		delete(s.items, item.Item.ID)
		removed++
	}
	if removed > 0 {
		kept := s.order[:0]
		for _, id := range s.order {
			if _, ok := s.items[id]; ok {
				kept = append(kept, id)
			}
		}
		s.order = kept
	}
	s.mu.Unlock()

	if removed > 0 {
		logrus.Debugf("Removed %d comments from report", removed)
		s.notifyChange()
	}
}

// Contains reports whether the item with the given ID is in the report.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Items returns the report members in insertion order.
func (s *Store) Items() []models.ScoredItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ScoredItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Count returns the number of report members.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// SetContext records the free-text context the user attaches to the report.
func (s *Store) SetContext(context string) {
	s.mu.Lock()
	s.context = context
	s.mu.Unlock()
	s.notifyChange()
}

// SetAction records the platform action to take on finalization.
func (s *Store) SetAction(action Action) {
	s.mu.Lock()
	s.action = action
	s.mu.Unlock()
	s.notifyChange()
}

// Action returns the currently selected platform action.
func (s *Store) Action() Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.action
}

// Snapshot finalizes the current report contents into an immutable record.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.ScoredItem, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id])
	}
	return Snapshot{
		ReportID:  uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Context:   s.context,
		Action:    s.action,
		Items:     items,
	}
}

// Clear discards all membership and metadata and tells listeners to reset
// their derived state.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = make(map[string]models.ScoredItem)
	s.order = nil
	s.context = ""
	s.action = ActionNone
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	logrus.Debug("Report cleared")
	for _, l := range listeners {
		l.OnClear()
	}
}

func (s *Store) notifyChange() {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l.OnChange()
	}
}
