// Package twitter is the raw item source: it pulls the signed-in user's
// recent mentions from the Twitter v2 API and carries out the platform
// actions (block, mute, hide replies) a finalized report requests.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.twitter.com/2"

// maxResultsPerPage is the v2 search page cap.
const maxResultsPerPage = 100

// Client talks to the Twitter v2 API on behalf of one authenticated user.
type Client struct {
	bearerToken string
	baseURL     string
	client      *resty.Client
}

type mentionsResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user  `json:"users"`
		Media []media `json:"media"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		LikeCount    int `json:"like_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type user struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	Verified        bool   `json:"verified"`
	ProfileImageURL string `json:"profile_image_url"`
}

type media struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
}

// NewClient creates a Twitter client. An empty baseURL uses the public API
// host.
func NewClient(bearerToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		bearerToken: bearerToken,
		baseURL:     baseURL,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "harassment-manager/1.0"),
	}
}

// IsEnabled reports whether a bearer token is configured.
func (c *Client) IsEnabled() bool {
	return c.bearerToken != ""
}

// GetMentions fetches every mention of the user in [start, end], following
// the pagination token until the API reports no further pages.
func (c *Client) GetMentions(ctx context.Context, userID string, start, end time.Time) ([]models.SocialMediaItem, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("twitter client disabled: missing bearer token")
	}

	var items []models.SocialMediaItem
	nextToken := ""
	for {
		page, token, err := c.fetchMentionsPage(ctx, userID, start, end, nextToken)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if token == "" {
			break
		}
		nextToken = token
	}

	logrus.Infof("Fetched %d mentions for user %s", len(items), userID)
	return items, nil
}

func (c *Client) fetchMentionsPage(ctx context.Context, userID string, start, end time.Time, paginationToken string) ([]models.SocialMediaItem, string, error) {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.bearerToken).
		SetQueryParams(map[string]string{
			"start_time":   start.UTC().Format(time.RFC3339),
			"end_time":     end.UTC().Format(time.RFC3339),
			"max_results":  fmt.Sprintf("%d", maxResultsPerPage),
			"tweet.fields": "created_at,author_id,public_metrics,attachments",
			"expansions":   "author_id,attachments.media_keys",
			"user.fields":  "name,username,verified,profile_image_url",
			"media.fields": "type",
		})
	if paginationToken != "" {
		req.SetQueryParam("pagination_token", paginationToken)
	}

	resp, err := req.Get(fmt.Sprintf("%s/users/%s/mentions", c.baseURL, userID))
	if err != nil {
		return nil, "", fmt.Errorf("twitter mentions request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		logrus.Errorf("Twitter API error: status %d, body: %s", resp.StatusCode(), string(resp.Body()))
		return nil, "", fmt.Errorf("twitter API returned status %d", resp.StatusCode())
	}

	var mentionsResp mentionsResponse
	if err := json.Unmarshal(resp.Body(), &mentionsResp); err != nil {
		return nil, "", fmt.Errorf("failed to parse twitter response: %w", err)
	}

	users := make(map[string]user, len(mentionsResp.Includes.Users))
	for _, u := range mentionsResp.Includes.Users {
		users[u.ID] = u
	}
	imageKeys := make(map[string]bool, len(mentionsResp.Includes.Media))
	for _, m := range mentionsResp.Includes.Media {
		if m.Type == "photo" || m.Type == "animated_gif" {
			imageKeys[m.MediaKey] = true
		}
	}

	items := make([]models.SocialMediaItem, 0, len(mentionsResp.Data))
	for _, tw := range mentionsResp.Data {
		createdAt, err := time.Parse(time.RFC3339, tw.CreatedAt)
		if err != nil {
			logrus.Errorf("Failed to parse tweet timestamp %q: %v", tw.CreatedAt, err)
		}

		item := models.SocialMediaItem{
			ID:            tw.ID,
			Text:          tw.Text,
			CreatedAt:     createdAt,
			AuthorID:      tw.AuthorID,
			URL:           fmt.Sprintf("https://twitter.com/i/status/%s", tw.ID),
			FavoriteCount: tw.PublicMetrics.LikeCount,
			ReplyCount:    tw.PublicMetrics.ReplyCount,
			RetweetCount:  tw.PublicMetrics.RetweetCount,
		}
		if author, ok := users[tw.AuthorID]; ok {
			item.AuthorName = author.Name
			item.AuthorScreenName = author.Username
			item.AuthorAvatarURL = author.ProfileImageURL
			item.Verified = author.Verified
		}
		for _, key := range tw.Attachments.MediaKeys {
			if imageKeys[key] {
				item.HasImage = true
				break
			}
		}
		items = append(items, item)
	}

	return items, mentionsResp.Meta.NextToken, nil
}

// BlockUsers blocks each author ID on behalf of the user. Failures are
// collected so one bad ID does not stop the rest of the batch.
func (c *Client) BlockUsers(ctx context.Context, userID string, targetIDs []string) error {
	return c.applyUserAction(ctx, userID, targetIDs, "blocking")
}

// MuteUsers mutes each author ID on behalf of the user.
func (c *Client) MuteUsers(ctx context.Context, userID string, targetIDs []string) error {
	return c.applyUserAction(ctx, userID, targetIDs, "muting")
}

func (c *Client) applyUserAction(ctx context.Context, userID string, targetIDs []string, action string) error {
	var failed []string
	for _, targetID := range targetIDs {
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+c.bearerToken).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"target_user_id": targetID}).
			Post(fmt.Sprintf("%s/users/%s/%s", c.baseURL, userID, action))
		if err != nil {
			logrus.Errorf("Failed %s action for user %s: %v", action, targetID, err)
			failed = append(failed, targetID)
			continue
		}
		if resp.StatusCode() != 200 {
			logrus.Errorf("Failed %s action for user %s: status %d", action, targetID, resp.StatusCode())
			failed = append(failed, targetID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%s failed for %d of %d users", action, len(failed), len(targetIDs))
	}
	return nil
}

// HideReplies hides each tweet ID as a reply to the user's content.
func (c *Client) HideReplies(ctx context.Context, tweetIDs []string) error {
	var failed []string
	for _, tweetID := range tweetIDs {
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+c.bearerToken).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]bool{"hidden": true}).
			Put(fmt.Sprintf("%s/tweets/%s/hidden", c.baseURL, tweetID))
		if err != nil {
			logrus.Errorf("Failed to hide reply %s: %v", tweetID, err)
			failed = append(failed, tweetID)
			continue
		}
		if resp.StatusCode() != 200 {
			logrus.Errorf("Failed to hide reply %s: status %d", tweetID, resp.StatusCode())
			failed = append(failed, tweetID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("hide replies failed for %d of %d tweets", len(failed), len(tweetIDs))
	}
	return nil
}
