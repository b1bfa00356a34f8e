package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/service"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
)

func gateOptions(threshold float64) (*service.GateOptions, error) {
	if threshold < 0 || threshold > 1 {
		return nil, goerr.New("threshold must be in (0, 1]", goerr.V("threshold", threshold))
	}
	if threshold == 0 {
		return nil, nil
	}
	return &service.GateOptions{Threshold: threshold}, nil
}

func thresholdFlag(dst *float64) cli.Flag {
	return &cli.FloatFlag{
		Name:        "threshold",
		Usage:       "Override the gate threshold (0-1]; 0 uses engine.threshold",
		Destination: dst,
	}
}

func addCommand(e *env) *cli.Command {
	var (
		title       string
		description string
		tags        []string
		threshold   float64
	)

	return &cli.Command{
		Name:  "add",
		Usage: "Add an idea if it is not too similar to an existing one",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "title",
				Aliases:     []string{"t"},
				Usage:       "Idea title",
				Required:    true,
				Destination: &title,
			},
			&cli.StringFlag{
				Name:        "description",
				Aliases:     []string{"d"},
				Usage:       "What the post should cover",
				Required:    true,
				Destination: &description,
			},
			&cli.StringSliceFlag{
				Name:        "tag",
				Usage:       "Tag, repeatable (1-5)",
				Required:    true,
				Destination: &tags,
			},
			thresholdFlag(&threshold),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			opts, err := gateOptions(threshold)
			if err != nil {
				return err
			}

			pool, closeFn, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := pool.Create(ctx, domain.NewIdeaInput{
				Title:       title,
				Description: description,
				Tags:        splitTags(tags),
			}, opts)
			if err != nil {
				return goerr.Wrap(err, "failed to add idea")
			}

			w := c.Root().Writer
			if !result.Gate.Accepted {
				printRejection(w, title, result.Gate)
				return goerr.New("idea rejected as a duplicate", goerr.V("title", title))
			}
			fmt.Fprintf(w, "added %s\t%s\n", result.Idea.ID, result.Idea.Title)
			return nil
		},
	}
}

// splitTags accepts both repeated --tag flags and comma lists.
func splitTags(raw []string) []string {
	var tags []string
	for _, r := range raw {
		for _, t := range strings.Split(r, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func printRejection(w io.Writer, title string, gate *service.GateResult) {
	fmt.Fprintf(w, "rejected %q (threshold %.2f, top_k %d)\n", title, gate.Threshold, gate.TopK)
	for _, c := range gate.Conflicts {
		fmt.Fprintf(w, "  %.3f  %s  %s\n", c.Score, c.ID, c.Title)
	}
}

func listCommand(e *env) *cli.Command {
	var (
		onlyUsed   bool
		onlyUnused bool
		format     string
	)

	return &cli.Command{
		Name:  "list",
		Usage: "List ideas, newest first",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "used",
				Usage:       "Only used ideas",
				Destination: &onlyUsed,
			},
			&cli.BoolFlag{
				Name:        "unused",
				Usage:       "Only unused ideas",
				Destination: &onlyUnused,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "Output format: table or yaml",
				Value:       formatTable,
				Destination: &format,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if onlyUsed && onlyUnused {
				return goerr.New("--used and --unused are mutually exclusive")
			}
			if format != formatTable && format != formatYAML {
				return goerr.New("unknown format", goerr.V("format", format))
			}

			var used *bool
			if onlyUsed || onlyUnused {
				used = &onlyUsed
			}

			pool, closeFn, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			ideas, err := pool.List(ctx, used)
			if err != nil {
				return goerr.Wrap(err, "failed to list ideas")
			}

			w := c.Root().Writer
			if format == formatYAML {
				return writeYAML(w, ideas)
			}
			return writeTable(w, ideas)
		},
	}
}

func writeTable(w io.Writer, ideas []domain.Idea) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tTITLE\tTAGS")
	for _, idea := range ideas {
		status := "unused"
		if idea.Used {
			status = "used"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			idea.ID, status, idea.CreatedAt.Format("2006-01-02"), idea.Title, strings.Join(idea.Tags, ","))
	}
	return tw.Flush()
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode yaml")
	}
	return enc.Close()
}

func idArg(c *cli.Command) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", goerr.New("idea id is required")
	}
	return id, nil
}

func showCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one idea",
		ArgsUsage: "<idea-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}

			pool, closeFn, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			idea, err := pool.Get(ctx, id)
			if err != nil {
				return goerr.Wrap(err, "failed to show idea", goerr.V("id", id))
			}
			return writeYAML(c.Root().Writer, idea)
		},
	}
}

func deleteCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an idea; unknown ids are not an error",
		ArgsUsage: "<idea-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}

			pool, closeFn, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := pool.Delete(ctx, id); err != nil {
				return goerr.Wrap(err, "failed to delete idea", goerr.V("id", id))
			}
			fmt.Fprintf(c.Root().Writer, "deleted %s\n", id)
			return nil
		},
	}
}

func nextCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "next",
		Usage: "Preview the idea the next publish run would pick",
		Action: func(ctx context.Context, c *cli.Command) error {
			pool, closeFn, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			sel, err := pool.Next(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to select next idea")
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "%s\t%s\n", sel.Idea.ID, sel.Idea.Title)
			if sel.ColdStart {
				fmt.Fprintf(w, "cold start: random pick among %d unused ideas\n", sel.Candidates)
			} else {
				fmt.Fprintf(w, "max similarity %.3f to %d recently used ideas, %d candidates\n",
					sel.MaxSimilarity, len(sel.RecentIDs), sel.Candidates)
			}
			return nil
		},
	}
}
