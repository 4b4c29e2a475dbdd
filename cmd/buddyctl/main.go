package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"
	"github.com/vkngwrapper/pagealloc/buddy"
	"github.com/vkngwrapper/pagealloc/internal/workload"
	"golang.org/x/exp/slog"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("buddyctl failed", slog.String("Error", err.Error()))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  appName,
		Usage: "drive a buddy page allocator from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a yaml config file. Defaults to $BUDDYCTL_CONFIG_FILE, then buddyctl.yaml in the user config directory.",
			},
		},
		Commands: []*cli.Command{{
			Name:  "run",
			Usage: "run a yaml workload script against a fresh page pool and print the final state",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "script",
					Usage:    "the workload script to run",
					Required: true,
				},
				&cli.BoolFlag{
					Name:  "json",
					Usage: "print the final state as json",
				},
			},
			Action: withConfig(func(config *Config, logger *slog.Logger, ctx *cli.Context) error {
				script, err := workload.Load(ctx.String("script"))
				if err != nil {
					return err
				}

				result, err := workload.Run(logger, script, config.CreateOptions())
				if err != nil {
					return err
				}

				if ctx.Bool("json") {
					return writeJSON(ctx.App.Writer, result.Allocator)
				}

				if err := writeState(ctx.App.Writer, result.Allocator); err != nil {
					return err
				}
				for _, allocation := range result.Live {
					_, err := fmt.Fprintf(ctx.App.Writer, "live %#x order %d %s\n", uint64(allocation.PFN), allocation.Order, allocation.Label)
					if err != nil {
						return errors.Wrap(err, "writing allocations")
					}
				}
				return nil
			}),
		}, {
			Name:  "dump",
			Usage: "initialize a page pool, optionally reserve pages in it, and print its free areas",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "pages",
					Usage:    "the number of pages in the pool",
					Required: true,
				},
				&cli.Uint64Flag{
					Name:  "base",
					Usage: "the pfn of the first page in the pool",
				},
				&cli.Int64SliceFlag{
					Name:  "reserve",
					Usage: "a pfn to reserve before dumping. May be repeated.",
				},
				&cli.BoolFlag{
					Name:  "json",
					Usage: "print the state as json",
				},
			},
			Action: withConfig(func(config *Config, logger *slog.Logger, ctx *cli.Context) error {
				count := ctx.Int("pages")
				if count <= 0 {
					return errors.Newf("--pages must be positive, got %d", count)
				}

				pages := make([]buddy.Page, count)
				table := buddy.NewPageTable(buddy.PFN(ctx.Uint64("base")), pages)
				allocator := buddy.New(logger, table, config.CreateOptions())
				if err := allocator.Init(pages); err != nil {
					return err
				}

				for _, pfn := range ctx.Int64Slice("reserve") {
					if pfn < 0 || !allocator.ReservePage(table.PFNToPage(buddy.PFN(pfn))) {
						return errors.Newf("pfn %#x could not be reserved", pfn)
					}
				}

				allocator.DumpState()

				if ctx.Bool("json") {
					return writeJSON(ctx.App.Writer, allocator)
				}
				return writeState(ctx.App.Writer, allocator)
			}),
		}},
	}
}

func withConfig(f func(*Config, *slog.Logger, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		config, err := LoadConfig(ctx.String("config"))
		if err != nil {
			return errors.Wrap(err, "loading config")
		}

		errWriter := ctx.App.ErrWriter
		if errWriter == nil {
			errWriter = os.Stderr
		}

		return f(config, config.Logger(errWriter), ctx)
	}
}

func writeJSON(w io.Writer, allocator *buddy.Allocator) error {
	data, err := allocator.StateJSON()
	if err != nil {
		return errors.Wrap(err, "rendering allocator state as json")
	}

	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return errors.Wrap(err, "writing json")
	}
	return nil
}

// writeState prints a summary line followed by one line per order, listing free block pfns in hex
func writeState(w io.Writer, allocator *buddy.Allocator) error {
	var out strings.Builder
	fmt.Fprintf(&out, "%d pages, %d free, %d allocations\n", allocator.PageCount(), allocator.SumFreePages(), allocator.AllocationCount())

	for order, blocks := range allocator.FreeAreas() {
		fmt.Fprintf(&out, "[%d]", order)
		for _, pfn := range blocks {
			fmt.Fprintf(&out, " %x", uint64(pfn))
		}
		out.WriteString("\n")
	}

	if _, err := io.WriteString(w, out.String()); err != nil {
		return errors.Wrap(err, "writing allocator state")
	}
	return nil
}
