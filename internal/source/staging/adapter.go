// Package staging reads ideas from a JSON Lines manifest, one idea per line.
package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/logger"
	"github.com/timmy/ideaforge/internal/source"
)

// ManifestExt is the file extension the adapter handles.
const ManifestExt = ".jsonl"

// ManifestItem is one line of the manifest.
type ManifestItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Adapter implements source.Source for a manifest file.
type Adapter struct {
	path   string
	items  []source.Item
	loaded bool
}

func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

func (a *Adapter) ID() string {
	return "staging:" + a.path
}

// FetchBatch loads the manifest on first use and pages through it.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.Item, string, error) {
	if !a.loaded {
		if err := a.loadItems(ctx); err != nil {
			return nil, "", err
		}
		a.loaded = true
	}
	return source.Page(a.items, cursor, limit)
}

// loadItems reads the manifest. Blank lines are ignored and malformed
// lines are skipped with a warning.
func (a *Adapter) loadItems(ctx context.Context) error {
	file, err := os.Open(a.path)
	if err != nil {
		return goerr.Wrap(err, "failed to open manifest", goerr.V("path", a.path))
	}
	defer file.Close()

	a.items = []source.Item{}
	skipped := 0

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			skipped++
			continue
		}

		a.items = append(a.items, source.Item{
			Origin: fmt.Sprintf("%s:%d", a.path, lineNo),
			Idea: domain.NewIdeaInput{
				Title:       item.Title,
				Description: item.Description,
				Tags:        item.Tags,
			},
		})
	}
	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "error reading manifest", goerr.V("path", a.path))
	}

	if skipped > 0 {
		logger.With(logger.Fields{
			logger.FieldComponent: "staging",
			logger.FieldCount:     skipped,
		}).Warn(ctx, "Skipped malformed manifest lines in %s", a.path)
	}
	return nil
}
