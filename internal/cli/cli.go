// Package cli implements ideactl, the operator command line for the idea pool.
package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/app"
	"github.com/timmy/ideaforge/internal/config"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/service"
	"github.com/urfave/cli/v3"
)

// ideaPool is the part of *service.IdeaService the commands use.
type ideaPool interface {
	Create(ctx context.Context, in domain.NewIdeaInput, opts *service.GateOptions) (*service.CreateResult, error)
	List(ctx context.Context, used *bool) ([]domain.Idea, error)
	Get(ctx context.Context, id string) (*domain.Idea, error)
	Delete(ctx context.Context, id string) error
	Next(ctx context.Context) (*service.Selection, error)
}

// opener builds the pool from a config path. The returned func releases it.
type opener func(ctx context.Context, configPath string) (ideaPool, func() error, error)

type Error struct {
	Code    int
	Message string
}

// Run executes ideactl with argv.
func Run(ctx context.Context, argv []string) *Error {
	if err := newRootCommand(openPool).Run(ctx, argv); err != nil {
		return &Error{Code: 1, Message: err.Error()}
	}
	return nil
}

func openPool(ctx context.Context, configPath string) (ideaPool, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load config")
	}
	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return nil, nil, err
	}
	return a.Ideas, a.Close, nil
}

// env carries the global flags to every command.
type env struct {
	configPath string
	open       opener
}

func (e *env) pool(ctx context.Context) (ideaPool, func() error, error) {
	return e.open(ctx, e.configPath)
}

func newRootCommand(open opener) *cli.Command {
	e := &env{open: open}

	return &cli.Command{
		Name:  "ideactl",
		Usage: "Manage the blog idea pool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				Sources:     cli.EnvVars("CONFIG_PATH"),
				Destination: &e.configPath,
			},
		},
		Commands: []*cli.Command{
			addCommand(e),
			listCommand(e),
			showCommand(e),
			deleteCommand(e),
			nextCommand(e),
			importCommand(e),
		},
	}
}
