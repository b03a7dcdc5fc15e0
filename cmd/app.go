package main

import (
	"fmt"
	"fsrep/internal"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// run executes the CLI and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	failures := internal.NewFailureHandler(stderr, isTerminal(stderr))
	app := newApp(stdout, stderr, failures)
	return failures.Exit(app.Run(args))
}

func newApp(stdout, stderr io.Writer, failures *internal.FailureHandler) *cli.App {
	return &cli.App{
		Name:      "fsrep",
		Usage:     "Search files for lines matching a regular expression",
		ArgsUsage: "<pattern> <filename> [<filename> ...]",
		Writer:    stdout,
		ErrWriter: stderr,
		// exit status is decided by FailureHandler.Exit
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "ignore-case",
				Aliases: []string{"i"},
				Usage:   "Case-insensitive matching",
			},
			&cli.BoolFlag{
				Name:    "fixed-strings",
				Aliases: []string{"F"},
				Usage:   "Treat the pattern as a literal string, not a regular expression",
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "Max concurrent file scans (0 - one per file)",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "archives",
				Usage: "Scan every file inside archive arguments (.zip,.tar,.gz,.7z,...)",
			},
			&cli.BoolFlag{
				Name:  "keep-order",
				Usage: "Print reports in argument order once all files are scanned",
			},
			&cli.StringFlag{
				Name:    "color",
				Usage:   "Colorize output: auto, always, never",
				Value:   "auto",
				EnvVars: []string{"FSREP_COLOR"},
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show a progress bar on stderr",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print scan totals on stderr when done",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error",
				Value:   "warn",
				EnvVars: []string{"FSREP_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "logfile",
				Usage: "Write logs into file instead of stderr",
			},
		},
		Action: func(c *cli.Context) error {
			internal.InitLogger(c.String("logfile"), c.String("log-level"))

			colors, err := colorMode(c.String("color"), stdout)
			if err != nil {
				return err
			}
			errColors, _ := colorMode(c.String("color"), stderr)
			failures.SetColor(errColors)

			if c.NArg() < 1 {
				return fmt.Errorf("%w: needs a query string", internal.ErrInsufficientArgs)
			}
			opts := internal.SearchOptions{
				Pattern:    c.Args().First(),
				Filenames:  c.Args().Tail(),
				IgnoreCase: c.Bool("ignore-case"),
				Fixed:      c.Bool("fixed-strings"),
				Threads:    c.Int("threads"),
				Archives:   c.Bool("archives"),
				KeepOrder:  c.Bool("keep-order"),
				Color:      colors,
				Progress:   c.Bool("progress"),
				Stats:      c.Bool("stats"),
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			var progressOut io.Writer
			if opts.Progress {
				progressOut = stderr
			}
			var stats internal.AppStats
			searcher := internal.NewSearcher(opts, internal.NewReporter(stdout, opts.Color), failures, &stats, progressOut)

			sum, err := searcher.Run(c.Context)
			if opts.Stats {
				fmt.Fprintln(stderr, sum)
			}
			logrus.WithFields(logrus.Fields{
				"files":   sum.Files,
				"matches": sum.Matches,
				"errors":  sum.Errors,
			}).Info("fsrep finished")
			return err
		},
	}
}

func colorMode(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		return !color.NoColor && isTerminal(w), nil
	default:
		return false, fmt.Errorf("unsupported color mode %q (want auto, always or never)", mode)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
