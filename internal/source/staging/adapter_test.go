package staging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timmy/ideaforge/internal/source"
	"github.com/timmy/ideaforge/internal/source/staging"
)

func TestAdapterSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ideas.jsonl")
	manifest := `{"title":"First idea","description":"d1","tags":["a"]}

{broken
{"title":"Second idea","description":"d2","tags":["b","c"]}
`
	gt.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	a := staging.NewAdapter(path)
	gt.Equal(t, a.ID(), "staging:"+path)

	items, err := source.ReadAll(context.Background(), a, 1)
	gt.NoError(t, err)
	gt.A(t, items).Length(2)
	gt.Equal(t, items[0].Idea.Title, "First idea")
	gt.Equal(t, items[0].Origin, path+":1")
	gt.Equal(t, items[1].Idea.Tags, []string{"b", "c"})
	gt.Equal(t, items[1].Origin, path+":4")
}

func TestAdapterMissingFile(t *testing.T) {
	a := staging.NewAdapter(filepath.Join(t.TempDir(), "missing.jsonl"))
	_, _, err := a.FetchBatch(context.Background(), "", 10)
	gt.Error(t, err)
}
