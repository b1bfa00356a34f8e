package service

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/logger"
)

const (
	PlatformDevTo   = "devto"
	PlatformWebhook = "webhook"

	defaultDevToBaseURL   = "https://dev.to/api"
	defaultPublishTimeout = 30 * time.Second
	devToMaxTags          = 4
)

// Article is what gets published.
type Article struct {
	IdeaID  string   `json:"idea_id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Draft   bool     `json:"draft"`
}

// PlatformResult is the outcome of publishing to one platform.
type PlatformResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Platform publishes articles to one destination.
type Platform interface {
	Name() string
	Publish(ctx context.Context, article *Article) (url string, err error)
}

// Publisher fans an article out to registered platforms by name.
type Publisher struct {
	platforms map[string]Platform
}

// NewPublisher registers platforms under their names.
func NewPublisher(platforms ...Platform) *Publisher {
	p := &Publisher{platforms: make(map[string]Platform, len(platforms))}
	for _, platform := range platforms {
		p.platforms[platform.Name()] = platform
	}
	return p
}

// Platforms returns the registered platform names, sorted.
func (p *Publisher) Platforms() []string {
	names := make([]string, 0, len(p.platforms))
	for name := range p.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Publish sends article to each named platform in order and reports every
// outcome. Unknown names produce a failed result.
func (p *Publisher) Publish(ctx context.Context, article *Article, names []string) []PlatformResult {
	results := make([]PlatformResult, 0, len(names))
	for _, name := range names {
		result := PlatformResult{Platform: name}

		platform, ok := p.platforms[name]
		if !ok {
			result.Error = "platform not configured"
			results = append(results, result)
			logger.With(logger.Fields{logger.FieldPlatform: name}).Warn(ctx, "Skipping unknown platform")
			continue
		}

		start := time.Now()
		url, err := platform.Publish(ctx, article)
		entry := logger.With(logger.Fields{
			logger.FieldPlatform: name,
			logger.FieldIdeaID:   article.IdeaID,
		}).WithDuration(time.Since(start).Milliseconds())
		if err != nil {
			result.Error = err.Error()
			entry.Error(ctx, "Publish failed: %v", err)
		} else {
			result.Success = true
			result.URL = url
			entry.Info(ctx, "Published article")
		}
		results = append(results, result)
	}
	return results
}

// DevToPlatform publishes through the dev.to articles API.
type DevToPlatform struct {
	client *resty.Client
}

// NewDevToPlatform creates a dev.to client. An empty baseURL uses the public API.
func NewDevToPlatform(apiKey, baseURL string, timeout time.Duration) *DevToPlatform {
	if baseURL == "" {
		baseURL = defaultDevToBaseURL
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("api-key", apiKey).
		SetHeader("Content-Type", "application/json")
	return &DevToPlatform{client: client}
}

// Name returns "devto".
func (d *DevToPlatform) Name() string { return PlatformDevTo }

type devToArticle struct {
	Title        string   `json:"title"`
	BodyMarkdown string   `json:"body_markdown"`
	Published    bool     `json:"published"`
	Tags         []string `json:"tags,omitempty"`
}

type devToRequest struct {
	Article devToArticle `json:"article"`
}

type devToResponse struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Publish creates the article, published unless it is a draft.
func (d *DevToPlatform) Publish(ctx context.Context, article *Article) (string, error) {
	var resp devToResponse
	httpResp, err := d.client.R().
		SetContext(ctx).
		SetBody(devToRequest{Article: devToArticle{
			Title:        article.Title,
			BodyMarkdown: article.Content,
			Published:    !article.Draft,
			Tags:         DevToTags(article.Tags),
		}}).
		SetResult(&resp).
		SetError(&resp).
		Post("/articles")
	if err != nil {
		return "", goerr.Wrap(err, "dev.to request failed")
	}
	if httpResp.IsError() {
		return "", goerr.New("dev.to rejected article",
			goerr.V("status", httpResp.StatusCode()), goerr.V("error", resp.Error))
	}
	return resp.URL, nil
}

// DevToTags lower-cases tags, strips everything but letters and digits,
// drops empties and keeps at most four, as dev.to requires.
func DevToTags(tags []string) []string {
	out := make([]string, 0, devToMaxTags)
	for _, tag := range tags {
		var b strings.Builder
		for _, r := range strings.ToLower(tag) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() == 0 {
			continue
		}
		out = append(out, b.String())
		if len(out) == devToMaxTags {
			break
		}
	}
	return out
}

// WebhookPlatform POSTs the article as JSON to a configured URL.
type WebhookPlatform struct {
	client *resty.Client
	url    string
}

// NewWebhookPlatform creates a webhook platform. A non-empty token is sent
// as a bearer token.
func NewWebhookPlatform(url, token string, timeout time.Duration) *WebhookPlatform {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &WebhookPlatform{client: client, url: url}
}

// Name returns "webhook".
func (w *WebhookPlatform) Name() string { return PlatformWebhook }

type webhookResponse struct {
	URL string `json:"url"`
}

// HeaderRunID carries the publish run id on webhook requests.
const HeaderRunID = "X-Run-ID"

// Publish posts the article. The receiver may answer with {"url": ...}.
func (w *WebhookPlatform) Publish(ctx context.Context, article *Article) (string, error) {
	var resp webhookResponse
	req := w.client.R().SetContext(ctx)
	if runID := logger.GetRunID(ctx); runID != "" {
		req.SetHeader(HeaderRunID, runID)
	}
	httpResp, err := req.
		SetBody(article).
		SetResult(&resp).
		Post(w.url)
	if err != nil {
		return "", goerr.Wrap(err, "webhook request failed", goerr.V("url", w.url))
	}
	if httpResp.IsError() {
		return "", goerr.New("webhook rejected article",
			goerr.V("status", httpResp.StatusCode()), goerr.V("url", w.url))
	}
	return resp.URL, nil
}
