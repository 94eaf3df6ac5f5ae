// Command cgrule-run applies a compiled grammar to a corpus from the
// command line: one subcommand to validate a grammar document loads
// cleanly, one to run it end to end (with --statistics, it also logs a
// run-statistics summary).
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cours-de-latin/cgrule"
	"github.com/cours-de-latin/cgrule/adapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "cgrule-run",
		Short: "Apply a constraint-grammar rule set to a tagged corpus",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newValidateCommand(&configPath))
	root.AddCommand(newRunCommand(&configPath))
	return root
}

func loadConfig(configPath *string, cmd *cobra.Command) (*cgrule.Config, error) {
	v := cgrule.NewViper(*configPath)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return cgrule.Load(v)
}

func newValidateCommand(configPath *string) *cobra.Command {
	var grammarPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a grammar document and report its section counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(grammarPath)
			if err != nil {
				return errors.Wrap(err, "open grammar")
			}
			defer f.Close()

			g, err := adapter.DecodeGrammar(f)
			if err != nil {
				return errors.Wrap(err, "decode grammar")
			}
			fmt.Printf("sections: %d, before: %d, after: %d\n",
				len(g.Sections), len(g.BeforeSections), len(g.AfterSections))
			return nil
		},
	}
	cmd.Flags().StringVar(&grammarPath, "grammar", "", "path to a compiled-grammar JSON document")
	cmd.MarkFlagRequired("grammar")
	return cmd
}

func newRunCommand(configPath *string) *cobra.Command {
	var grammarPath, inputPath, outputPath, format string
	var statistics bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a grammar over a corpus and write the processed result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd)
			if err != nil {
				return err
			}
			if statistics {
				cfg.Statistics = true
			}

			log, err := cgrule.NewProductionLogger()
			if err != nil {
				return err
			}
			defer log.Sync()
			report := &cgrule.ZapAnomalyReporter{Log: log}

			gf, err := os.Open(grammarPath)
			if err != nil {
				return errors.Wrap(err, "open grammar")
			}
			defer gf.Close()
			g, err := adapter.DecodeGrammar(gf)
			if err != nil {
				return errors.Wrap(err, "decode grammar")
			}

			in, err := openInput(inputPath)
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := openOutput(outputPath)
			if err != nil {
				return err
			}
			defer out.Close()

			return runCorpus(g, in, out, format, cfg, report, log)
		},
	}
	cmd.Flags().StringVar(&grammarPath, "grammar", "", "path to a compiled-grammar JSON document")
	cmd.Flags().StringVar(&inputPath, "input", "-", "corpus path, or - for stdin")
	cmd.Flags().StringVar(&outputPath, "output", "-", "output path, or - for stdout")
	cmd.Flags().StringVar(&format, "format", "jsonl", "corpus format: jsonl or plaintext")
	cmd.Flags().BoolVar(&statistics, "statistics", false, "print a run-statistics summary to stderr")
	cmd.MarkFlagRequired("grammar")
	return cmd
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" || path == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func runCorpus(g *cgrule.Grammar, in io.Reader, out io.Writer, format string, cfg *cgrule.Config, report cgrule.AnomalyReporter, log *zap.Logger) error {
	w := cgrule.NewWindow(cfg.NumWindows)
	sc := adapter.NewLineScanner(in)

	var stats *cgrule.Statistics
	runnerStats := &cgrule.RunnerStats{}
	if cfg.Statistics {
		stats = cgrule.NewStatistics(prometheus.NewRegistry())
		runnerStats.Stats = stats
	}

	for {
		var sw *cgrule.SingleWindow
		if len(w.Next) > 0 {
			// A DELIMIT in the previous window's run split off a tail
			// window; run it before pulling anything new from the
			// corpus, the way a split sentence is finished before the
			// next one starts.
			sw, w.Next = w.Next[0], w.Next[1:]
			w.PushCurrent(sw)
		} else {
			var err error
			sw, err = decodeWindow(g, w, sc, format, report)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return errors.Wrap(err, "decode window")
			}
		}

		cgrule.RunWindow(g, w, sw, cfg.SectionMaxCount, runnerStats, report)

		if err := encodeWindow(g, sw, out, format); err != nil {
			return errors.Wrap(err, "encode window")
		}
	}

	if cfg.Statistics {
		summary, _ := json.MarshalIndent(runnerStats, "", "  ")
		log.Info("run complete", zap.ByteString("statistics", summary))
	}
	return nil
}

func decodeWindow(g *cgrule.Grammar, w *cgrule.Window, sc *bufio.Scanner, format string, report cgrule.AnomalyReporter) (*cgrule.SingleWindow, error) {
	if format == "plaintext" {
		return adapter.DecodePlaintextWindow(g, w, sc, report)
	}
	return adapter.DecodeWindow(g, w, sc, report)
}

func encodeWindow(g *cgrule.Grammar, sw *cgrule.SingleWindow, out io.Writer, format string) error {
	if format == "plaintext" {
		return adapter.EncodePlaintextWindow(g, sw, out)
	}
	return adapter.EncodeWindow(g, sw, out)
}
