// Package reddit consumes the public Reddit JSON API as the forum
// collaborator. Pagination and rate limiting stay on Reddit's side; each call
// returns one finite batch of recent posts.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/threadmind/answerd/internal/domain"
)

const defaultBaseURL = "https://www.reddit.com"

// Client fetches recent posts and their accepted answers.
type Client struct {
	http         *http.Client
	baseURL      string
	userAgent    string
	fetchLimit   int
	commentLimit int
	logger       *zap.Logger
}

// Config holds Reddit client settings.
type Config struct {
	BaseURL      string // override for tests
	UserAgent    string // required by the Reddit API
	FetchLimit   int    // posts per listing fetch
	CommentLimit int    // top-level comments inspected per post
	Timeout      time.Duration
	Logger       *zap.Logger
}

// NewClient creates a Reddit API client.
func NewClient(cfg *Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	limit := cfg.FetchLimit
	if limit <= 0 {
		limit = 25
	}
	commentLimit := cfg.CommentLimit
	if commentLimit <= 0 {
		commentLimit = 20
	}
	return &Client{
		http:         &http.Client{Timeout: cfg.Timeout},
		baseURL:      base,
		userAgent:    cfg.UserAgent,
		fetchLimit:   limit,
		commentLimit: commentLimit,
		logger:       cfg.Logger,
	}
}

// listing mirrors the Reddit JSON envelope.
type listing struct {
	Data struct {
		Children []struct {
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

type commentData struct {
	Body   string `json:"body"`
	Author string `json:"author"`
	Score  int    `json:"score"`
}

// FetchRecentPosts returns posts from the subreddit's new listing created
// after since, each with its accepted answer resolved from the comment tree.
// Stickied and deleted posts are skipped.
func (c *Client) FetchRecentPosts(ctx context.Context, subreddit string, since time.Time) ([]domain.Post, error) {
	if subreddit == "" {
		return nil, fmt.Errorf("subreddit is required: %w", domain.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d",
		c.baseURL, url.PathEscape(subreddit), c.fetchLimit)

	var lst listing
	if err := c.getJSON(ctx, endpoint, &lst); err != nil {
		return nil, fmt.Errorf("fetch r/%s listing: %w", subreddit, err)
	}

	posts := make([]domain.Post, 0, len(lst.Data.Children))
	for _, child := range lst.Data.Children {
		d := child.Data
		if d.Stickied || deleted(d.Author) || deleted(d.SelfText) {
			continue
		}

		created := time.Unix(int64(d.CreatedUTC), 0).UTC()
		if !created.After(since) {
			continue
		}

		answer, err := c.fetchAcceptedAnswer(ctx, subreddit, d.ID)
		if err != nil {
			// A post without a resolvable comment tree is still a post;
			// it just stays ineligible for indexing.
			c.logger.Warn("failed to fetch comments",
				zap.String("post_id", d.ID), zap.Error(err))
		}

		posts = append(posts, domain.Post{
			ID:        d.ID,
			Title:     d.Title,
			Body:      d.SelfText,
			Answer:    answer,
			URL:       c.baseURL + d.Permalink,
			Subreddit: d.Subreddit,
			CreatedAt: created,
		})
	}

	return posts, nil
}

// fetchAcceptedAnswer picks the highest-scored non-deleted top-level comment.
// Reddit has no formal accepted-answer marker, so the community's top comment
// stands in for one. Empty when the post has no usable comments.
func (c *Client) fetchAcceptedAnswer(ctx context.Context, subreddit, postID string) (string, error) {
	endpoint := fmt.Sprintf("%s/r/%s/comments/%s.json?depth=1&limit=%d",
		c.baseURL, url.PathEscape(subreddit), url.PathEscape(postID), c.commentLimit)

	// The comments endpoint returns [postListing, commentListing].
	var pair []json.RawMessage
	if err := c.getJSON(ctx, endpoint, &pair); err != nil {
		return "", err
	}
	if len(pair) < 2 {
		return "", nil
	}

	var comments struct {
		Data struct {
			Children []struct {
				Kind string      `json:"kind"`
				Data commentData `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(pair[1], &comments); err != nil {
		return "", fmt.Errorf("parse comments: %w", err)
	}

	best := ""
	bestScore := 0
	for _, child := range comments.Data.Children {
		if child.Kind != "t1" {
			continue // "more" stubs and other non-comment kinds
		}
		d := child.Data
		if deleted(d.Body) || deleted(d.Author) {
			continue
		}
		if best == "" || d.Score > bestScore {
			best = d.Body
			bestScore = d.Score
		}
	}
	return best, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || timeoutErr(err) {
			return fmt.Errorf("get %s: %w", endpoint, domain.ErrUpstreamTimeout)
		}
		return fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func timeoutErr(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

func deleted(s string) bool {
	return s == "[deleted]" || s == "[removed]"
}
