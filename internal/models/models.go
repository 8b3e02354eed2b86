package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SocialMediaItem represents a single post pulled from a platform, typically a
// tweet mentioning or replying to the signed-in user. Items are immutable once
// fetched; only the timestamp is normalized when rehydrating serialized data.
type SocialMediaItem struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	CreatedAt        time.Time `json:"created_at"`
	AuthorName       string    `json:"author_name,omitempty"`
	AuthorScreenName string    `json:"author_screen_name,omitempty"`
	AuthorID         string    `json:"author_id,omitempty"`
	AuthorAvatarURL  string    `json:"author_avatar_url,omitempty"`
	URL              string    `json:"url,omitempty"`
	HasImage         bool      `json:"has_image,omitempty"`
	Verified         bool      `json:"verified,omitempty"`
	FavoriteCount    int       `json:"favorite_count,omitempty"`
	ReplyCount       int       `json:"reply_count,omitempty"`
	RetweetCount     int       `json:"retweet_count,omitempty"`
}

// UnmarshalJSON accepts the created_at timestamp either as RFC 3339, as the
// legacy Twitter "ruby" format, or as unix milliseconds. Items round-tripped
// through storage or a browser client arrive in any of the three.
func (s *SocialMediaItem) UnmarshalJSON(data []byte) error {
	type alias SocialMediaItem
	aux := struct {
		CreatedAt json.RawMessage `json:"created_at"`
		*alias
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.CreatedAt) > 0 {
		s.CreatedAt = parseTimestamp(aux.CreatedAt)
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			return t
		}
		if t, err := time.Parse(time.RubyDate, str); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
		return time.Time{}
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// ScoredItem pairs an item with its Perspective attribute scores. A missing
// attribute key means the item is unscored for that attribute, which is not
// the same as a score of zero.
type ScoredItem struct {
	Item   SocialMediaItem    `json:"item"`
	Scores map[string]float64 `json:"scores,omitempty"`
}

// AttributeScore returns the score for the named attribute and whether the
// item was scored for it at all.
func (s ScoredItem) AttributeScore(attribute string) (float64, bool) {
	if s.Scores == nil {
		return 0, false
	}
	score, ok := s.Scores[attribute]
	return score, ok
}

// SelectableItem is a ScoredItem carrying per-view selection state. Selection
// is keyed by item identity, never by position, so it survives re-filtering
// and re-sorting. Disabled marks loading placeholders.
type SelectableItem struct {
	ScoredItem
	Selected bool `json:"selected"`
	Disabled bool `json:"disabled,omitempty"`
}
