package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/cesargomez89/navistream/internal/app"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/http/dto"
)

// Runner binds CLI actions to a Service. Results are written to out as
// indented JSON.
type Runner struct {
	svc *app.Service
	out io.Writer
}

func NewRunner(svc *app.Service, out io.Writer) *Runner {
	return &Runner{svc: svc, out: out}
}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "sweep",
			Usage: "Verify every live track, mark missing files stale and drop old stale rows",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "hash",
					Usage: "Rehash each file and compare with the stored content hash",
				},
			},
			Action: r.Sweep,
		},
		{
			Name:  "search",
			Usage: "Look a track up in the local index",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "artist", Aliases: []string{"a"}, Required: true},
				&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
				&cli.StringFlag{Name: "album"},
			},
			Action: r.Search,
		},
		{
			Name:  "verify",
			Usage: "Rehash one track's file",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "id", Usage: "Track row id", Required: true},
			},
			Action: r.Verify,
		},
		{
			Name:  "acquire",
			Usage: "Download a track into the library unless it is already there",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "artist", Aliases: []string{"a"}},
				&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
				&cli.StringFlag{Name: "album"},
				&cli.StringSliceFlag{Name: "id", Usage: "External id as provider_tag:value, repeatable"},
			},
			Action: r.Acquire,
		},
	}
}

func (r *Runner) Sweep(ctx context.Context, cmd *cli.Command) error {
	report, err := r.svc.Sweep(ctx, cmd.Bool("hash"))
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	return r.print(report)
}

func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	row, err := r.svc.SearchIndex(ctx, cmd.String("artist"), cmd.String("title"), cmd.String("album"))
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: no local match", domain.ErrNotFound)
	}
	return r.print(row)
}

func (r *Runner) Verify(ctx context.Context, cmd *cli.Command) error {
	row, err := r.svc.Verify(ctx, cmd.Int64("id"))
	if err != nil {
		return err
	}
	return r.print(row)
}

func (r *Runner) Acquire(ctx context.Context, cmd *cli.Command) error {
	d, err := dto.DescriptorRequest{
		Artist: cmd.String("artist"),
		Title:  cmd.String("title"),
		Album:  cmd.String("album"),
		IDs:    cmd.StringSlice("id"),
	}.ToDomain()
	if err != nil {
		return err
	}
	row, err := r.svc.Acquire(ctx, d)
	if err != nil {
		return err
	}
	return r.print(row)
}

func (r *Runner) print(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
