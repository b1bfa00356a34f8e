package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultArchivePrefix = "articles"
	markdownContentType  = "text/markdown; charset=utf-8"
)

// ArticleArchive stores generated article bodies as Markdown objects keyed
// by publication month.
type ArticleArchive struct {
	storage ObjectStorage
	prefix  string
}

// NewArticleArchive creates an archive writing under prefix.
func NewArticleArchive(storage ObjectStorage, prefix string) *ArticleArchive {
	if prefix == "" {
		prefix = defaultArchivePrefix
	}
	return &ArticleArchive{storage: storage, prefix: prefix}
}

// ArticleKey returns <prefix>/<yyyy>/<mm>/<ideaID>.md for the UTC month of at.
func (a *ArticleArchive) ArticleKey(ideaID string, at time.Time) string {
	at = at.UTC()
	return path.Join(a.prefix, fmt.Sprintf("%04d", at.Year()), fmt.Sprintf("%02d", int(at.Month())), ideaID+".md")
}

// Store uploads content and returns its key.
func (a *ArticleArchive) Store(ctx context.Context, ideaID, content string, at time.Time) (string, error) {
	key := a.ArticleKey(ideaID, at)
	body := []byte(content)
	if err := a.storage.Upload(ctx, key, bytes.NewReader(body), int64(len(body)), markdownContentType); err != nil {
		return "", goerr.Wrap(err, "archive article", goerr.V("key", key))
	}
	return key, nil
}

// URL returns the public URL of an archived article.
func (a *ArticleArchive) URL(key string) string {
	return a.storage.GetURL(key)
}
