package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/schollz/progressbar/v3"
	"github.com/timmy/ideaforge/internal/source"
	"github.com/timmy/ideaforge/internal/source/staging"
	"github.com/timmy/ideaforge/internal/source/yamlfile"
	"github.com/urfave/cli/v3"
)

const importBatchSize = 50

type importSummary struct {
	accepted int
	rejected int
	failed   []string
}

func importCommand(e *env) *cli.Command {
	var threshold float64

	return &cli.Command{
		Name:      "import",
		Usage:     "Import ideas from YAML or JSONL files through the uniqueness gate",
		ArgsUsage: "<glob>...",
		Flags:     []cli.Flag{thresholdFlag(&threshold)},
		Action: func(ctx context.Context, c *cli.Command) error {
			opts, err := gateOptions(threshold)
			if err != nil {
				return err
			}
			if c.Args().Len() == 0 {
				return goerr.New("at least one file pattern is required")
			}

			files, err := expandPatterns(c.Args().Slice())
			if err != nil {
				return err
			}
			items, err := loadItems(ctx, files)
			if err != nil {
				return err
			}

			pool, closeFn, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			bar := newImportBar(c.Root().ErrWriter, len(items))
			var sum importSummary
			for _, item := range items {
				result, err := pool.Create(ctx, item.Idea, opts)
				switch {
				case err != nil:
					sum.failed = append(sum.failed, fmt.Sprintf("%s %q: %v", item.Origin, item.Idea.Title, err))
				case result.Gate.Accepted:
					sum.accepted++
				default:
					sum.rejected++
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			w := c.Root().Writer
			fmt.Fprintf(w, "files: %d, ideas: %d, accepted: %d, rejected: %d, failed: %d\n",
				len(files), len(items), sum.accepted, sum.rejected, len(sum.failed))
			for _, f := range sum.failed {
				fmt.Fprintf(w, "  failed %s\n", f)
			}
			if len(sum.failed) > 0 {
				return goerr.New("some ideas failed to import", goerr.V("failed", len(sum.failed)))
			}
			return nil
		},
	}
}

// expandPatterns resolves each pattern (with ** support) and returns the
// sorted, de-duplicated file list.
func expandPatterns(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, goerr.Wrap(err, "invalid pattern", goerr.V("pattern", pattern))
		}
		if len(matches) == 0 {
			return nil, goerr.New("pattern matched no files", goerr.V("pattern", pattern))
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// openSource picks the adapter by file extension.
func openSource(path string) (source.Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == staging.ManifestExt:
		return staging.NewAdapter(path), nil
	case slices.Contains(yamlfile.Exts, ext):
		return yamlfile.NewAdapter(path), nil
	default:
		return nil, goerr.New("unsupported idea file type", goerr.V("path", path))
	}
}

func loadItems(ctx context.Context, files []string) ([]source.Item, error) {
	var items []source.Item
	for _, path := range files {
		src, err := openSource(path)
		if err != nil {
			return nil, err
		}
		batch, err := source.ReadAll(ctx, src, importBatchSize)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}
	return items, nil
}

func newImportBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Importing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
