package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"tangled.sh/cuesheet/log"
	"tangled.sh/cuesheet/server"
)

func main() {
	cmd := &cli.Command{
		Name:  "cuesheet",
		Usage: "timecode-stamped show notes for production teams",
		Commands: []*cli.Command{
			server.Command(),
			server.SourcesCommand(),
		},
	}

	ctx := context.Background()
	logger := log.New("cuesheet")
	ctx = log.IntoContext(ctx, logger.With("command", cmd.Name))

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(-1)
	}
}
