package server

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"tangled.sh/cuesheet/server/config"
)

func SourcesCommand() *cli.Command {
	return &cli.Command{
		Name:   "sources",
		Usage:  "list detected timecode sources",
		Action: Sources,
		Description: `
Lists what CUESHEET_TIMECODE_SOURCE resolves to, using the same
environment variables as the server command.
`,
	}
}

func Sources(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var w io.Writer = os.Stdout
	if cmd.Writer != nil {
		w = cmd.Writer
	}
	return listSources(w, cfg.Timecode)
}

func listSources(w io.Writer, cfg config.Timecode) error {
	sources, err := discover(cfg)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintf(w, "no midi sources (%s), the synthetic clock will run at %s fps\n", cfg.Source, cfg.FrameRate)
		return nil
	}

	for i, s := range sources {
		kind := "device"
		if s.IsBridge() {
			kind = "bridge"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, kind, s.Name, s.Path)
	}
	return nil
}
