// Package yamlfile reads ideas from a YAML document holding a list of ideas.
package yamlfile

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/source"
	"gopkg.in/yaml.v3"
)

// Exts are the file extensions the adapter handles.
var Exts = []string{".yaml", ".yml"}

type Adapter struct {
	path   string
	items  []source.Item
	loaded bool
}

func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

func (a *Adapter) ID() string {
	return "yaml:" + a.path
}

// FetchBatch parses the whole file on first use. Unlike the JSONL manifest
// a parse error fails the file, since YAML has no line boundaries to skip.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.Item, string, error) {
	if !a.loaded {
		if err := a.load(); err != nil {
			return nil, "", err
		}
		a.loaded = true
	}
	return source.Page(a.items, cursor, limit)
}

func (a *Adapter) load() error {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return goerr.Wrap(err, "failed to read idea file", goerr.V("path", a.path))
	}

	var ideas []domain.NewIdeaInput
	if err := yaml.Unmarshal(data, &ideas); err != nil {
		return goerr.Wrap(err, "failed to parse idea file", goerr.V("path", a.path))
	}

	a.items = make([]source.Item, 0, len(ideas))
	for i, idea := range ideas {
		a.items = append(a.items, source.Item{
			Origin: fmt.Sprintf("%s#%d", a.path, i+1),
			Idea:   idea,
		})
	}
	return nil
}
