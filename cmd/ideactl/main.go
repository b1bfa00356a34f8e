package main

import (
	"context"
	"fmt"
	"os"

	"github.com/timmy/ideaforge/internal/cli"
	"github.com/timmy/ideaforge/internal/logger"
)

func main() {
	logger.SetDefaultLogger(logger.New(&logger.Config{
		Level:       "warn",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "ideactl",
	}))

	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Message)
		os.Exit(err.Code)
	}
}
