package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"notam_parser/internal/app"
	"notam_parser/internal/bus"
	"notam_parser/internal/engine"
	"notam_parser/internal/locator"
	"notam_parser/internal/notam"
)

// inputItem is one NOTAM read from an input.
type inputItem struct {
	Source string `json:"source"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"-"`
}

// record is one line of extract output.
type record struct {
	inputItem
	Result engine.Result       `json:"result"`
	Trace  []locator.ItemTrace `json:"trace,omitempty"`
}

type extractOptions struct {
	glob    bool
	jsonl   bool
	pretty  bool
	offline bool
	debug   bool
	parse   bool
	workers int
	output  string
	stats   bool
}

func extractCmd(g *globals) *cobra.Command {
	opts := extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [FILES...]",
		Short: "Extract closures from NOTAM files (stdin when none are given)",
		Long: `Reads NOTAM text files, JSONL envelopes ({"id","source","text"} per line)
or either of those compressed with zstd (.zst). Text files may hold several
NOTAMs; they are split on their reference lines. With --glob the arguments
are patterns and may use ** to match directories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runExtract(ctx, g, opts, args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.glob, "glob", false, "Treat arguments as glob patterns")
	f.BoolVar(&opts.jsonl, "jsonl", false, "Write one JSON result per line")
	f.BoolVar(&opts.pretty, "pretty", false, "Write an indented JSON array")
	f.BoolVar(&opts.offline, "offline", false, "Do not call the completion service")
	f.BoolVar(&opts.debug, "debug", false, "Include the locator trace in JSON output")
	f.BoolVar(&opts.parse, "parse-only", false, "Run the parser alone, without fallbacks or teaching")
	f.IntVarP(&opts.workers, "workers", "j", 4, "NOTAMs processed in parallel")
	f.StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	f.BoolVar(&opts.stats, "stats", false, "Print counters by status to stderr")

	return cmd
}

func runExtract(ctx context.Context, g *globals, opts extractOptions, args []string, stdin io.Reader, stdout io.Writer) error {
	paths, err := expandInputs(args, opts.glob)
	if err != nil {
		return err
	}

	var items []inputItem
	if len(paths) == 0 {
		items, err = readItems("stdin", stdin)
		if err != nil {
			return err
		}
	}
	for _, p := range paths {
		got, err := readFile(p)
		if err != nil {
			return err
		}
		items = append(items, got...)
	}

	a, err := g.open(ctx, app.Options{Offline: opts.offline})
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := processAll(ctx, a.Engine, items, opts)
	if err != nil {
		return err
	}

	if a.History != nil {
		for _, r := range records {
			if err := a.History.Insert(ctx, bus.HistoryFromResult(r.Text, r.Result, time.Now().UTC())); err != nil {
				a.Logger.Warn("record history failed", "source", r.Source, "error", err)
			}
		}
	}

	w := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeRecords(w, records, opts); err != nil {
		return err
	}

	if opts.stats {
		printStats(os.Stderr, records)
	}
	return nil
}

// expandInputs returns the files to read. Without glob the arguments are
// used as given.
func expandInputs(args []string, glob bool) ([]string, error) {
	if !glob {
		return args, nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range args {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// readFile reads the NOTAMs in path, decompressing .zst files.
func readFile(path string) ([]inputItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
		name = strings.TrimSuffix(path, ".zst")
	}

	items, err := readItems(name, r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, nil
}

// readItems reads JSONL envelopes when name ends in .jsonl or .ndjson and
// plain NOTAM text otherwise.
func readItems(name string, r io.Reader) ([]inputItem, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".jsonl" || ext == ".ndjson" {
		return readJSONL(name, r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var items []inputItem
	for i, text := range notam.Split(string(data)) {
		items = append(items, inputItem{Source: fmt.Sprintf("%s#%d", name, i+1), Text: text})
	}
	return items, nil
}

func readJSONL(name string, r io.Reader) ([]inputItem, error) {
	scanner := bufio.NewScanner(r)
	// NOTAM lines can be long; bump buffer.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	var items []inputItem
	line := 0
	for scanner.Scan() {
		line++
		b := strings.TrimSpace(scanner.Text())
		if b == "" {
			continue
		}
		msg := notam.DecodeMessage([]byte(b))
		items = append(items, inputItem{
			Source: fmt.Sprintf("%s:%d", name, line),
			ID:     string(msg.ID),
			Text:   msg.Text,
		})
	}
	return items, scanner.Err()
}

// processAll runs every item through the engine with at most opts.workers in
// flight. Records keep the input order.
func processAll(ctx context.Context, eng *engine.Engine, items []inputItem, opts extractOptions) ([]record, error) {
	records := make([]record, len(items))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(opts.workers, 1))
	for i, item := range items {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec := record{inputItem: item}
			if opts.parse {
				rec.Result = eng.Parse(item.Text)
			} else {
				rec.Result = eng.Process(ctx, item.Text)
			}
			if opts.debug {
				rec.Trace = eng.Locator().Trace(notam.Normalize(item.Text))
			}
			records[i] = rec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// writeRecords writes closure lines, JSON lines or an indented JSON array.
func writeRecords(w io.Writer, records []record, opts extractOptions) error {
	switch {
	case opts.jsonl:
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("JSON encode error: %w", err)
			}
		}
		return nil
	case opts.pretty || opts.debug:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []record{}
		}
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("JSON encode error: %w", err)
		}
		return nil
	}

	bw := bufio.NewWriter(w)
	for _, r := range records {
		for _, line := range r.Result.Outputs {
			fmt.Fprintln(bw, line)
		}
	}
	return bw.Flush()
}

func printStats(w io.Writer, records []record) {
	counts := make(map[engine.Status]int)
	lines := 0
	for _, r := range records {
		counts[r.Result.Status]++
		lines += len(r.Result.Outputs)
	}
	fmt.Fprintf(w, "stats: notams=%d lines=%d ok=%d fallback=%d saved=%d no_segments=%d empty=%d\n",
		len(records), lines,
		counts[engine.StatusOK], counts[engine.StatusFallback], counts[engine.StatusSaved],
		counts[engine.StatusNoSegments], counts[engine.StatusEmptyInput])
}
