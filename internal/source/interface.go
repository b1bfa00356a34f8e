// Package source reads candidate ideas from files for bulk import.
package source

import (
	"context"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
)

// Item is one candidate idea and where it was read from.
type Item struct {
	Origin string // path and position, e.g. "ideas.jsonl:3"
	Idea   domain.NewIdeaInput
}

// Source yields candidate ideas in pages.
type Source interface {
	// ID identifies the source in logs and reports.
	ID() string

	// FetchBatch returns up to limit items starting at cursor. An empty
	// cursor starts from the beginning; an empty nextCursor means done.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []Item, nextCursor string, err error)
}

// Page slices items by an index cursor.
func Page(items []Item, cursor string, limit int) ([]Item, string, error) {
	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return nil, "", goerr.New("invalid cursor", goerr.V("cursor", cursor))
		}
	}
	if limit <= 0 {
		return nil, "", goerr.New("limit must be positive", goerr.V("limit", limit))
	}
	if start >= len(items) {
		return []Item{}, "", nil
	}

	end := min(start+limit, len(items))
	next := ""
	if end < len(items) {
		next = strconv.Itoa(end)
	}
	return items[start:end], next, nil
}

// ReadAll drains src in pages of batchSize.
func ReadAll(ctx context.Context, src Source, batchSize int) ([]Item, error) {
	var (
		all    []Item
		cursor string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, next, err := src.FetchBatch(ctx, cursor, batchSize)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch batch", goerr.V("source", src.ID()), goerr.V("cursor", cursor))
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}
