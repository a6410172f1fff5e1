package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"notam_parser/internal/app"
	"notam_parser/internal/memory"
)

func teachCmd(g *globals) *cobra.Command {
	var notamPath, outputPath string
	var lines []string
	var fixes map[string]string

	cmd := &cobra.Command{
		Use:   "teach",
		Short: "Save the expected output for a NOTAM",
		Long: `Stores the expected closure lines for a NOTAM so that later runs answer
it from memory. --output takes a file of lines ("-" for stdin); --line may be
repeated instead. --fix BAD=GOOD saves a waypoint correction.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx, app.Options{Offline: true, NoHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()

			for bad, good := range fixes {
				if err := a.Store.SaveFix(ctx, bad, good); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fix saved: %s -> %s\n", strings.ToUpper(bad), strings.ToUpper(good))
			}
			if notamPath == "" {
				if len(fixes) == 0 {
					return fmt.Errorf("--notam or --fix is required")
				}
				return nil
			}

			text, err := readText(notamPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if outputPath != "" {
				got, err := readText(outputPath, cmd.InOrStdin())
				if err != nil {
					return err
				}
				lines = append(lines, strings.Split(got, "\n")...)
			}

			rec, err := memory.Teach(ctx, a.Store, text, lines)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d line(s) for %s\n", len(rec.Output), shortKey(rec.Key))
			return nil
		},
	}

	cmd.Flags().StringVar(&notamPath, "notam", "", "File holding the NOTAM text (- for stdin)")
	cmd.Flags().StringVar(&outputPath, "output", "", "File holding the expected lines (- for stdin)")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "Expected output line (repeatable)")
	cmd.Flags().StringToStringVar(&fixes, "fix", nil, "Waypoint correction BAD=GOOD (repeatable)")

	return cmd
}

func memoryCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage the teaching store",
	}

	var pendingOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List taught and pending NOTAMs as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), g, func(ctx context.Context, s memory.Store) error {
				records, err := s.List(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range records {
					if pendingOnly && !r.Pending() {
						continue
					}
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&pendingOnly, "pending", false, "Only NOTAMs still waiting for an answer")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every record and fix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), g, func(ctx context.Context, s memory.Store) error {
				if err := s.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "memory cleared")
				return nil
			})
		},
	}

	export := &cobra.Command{
		Use:   "export FILE",
		Short: "Write a compressed snapshot of the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), g, func(ctx context.Context, s memory.Store) error {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("create snapshot: %w", err)
				}
				snap, err := memory.Export(ctx, s, f)
				if err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d record(s) and %d fix(es)\n", len(snap.Records), len(snap.Fixes))
				return nil
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Load a snapshot into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), g, func(ctx context.Context, s memory.Store) error {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open snapshot: %w", err)
				}
				defer f.Close()
				snap, err := memory.Import(ctx, s, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s) and %d fix(es)\n", len(snap.Records), len(snap.Fixes))
				return nil
			})
		},
	}

	cmd.AddCommand(list, clearCmd, export, imp)
	return cmd
}

// withStore opens only the teaching store and runs fn against it.
func withStore(ctx context.Context, g *globals, fn func(context.Context, memory.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _, err := g.load()
	if err != nil {
		return err
	}
	s, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// readText reads a whole file, or stdin for "-".
func readText(path string, stdin io.Reader) (string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = bufio.NewReader(f)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func shortKey(key string) string {
	if len(key) > 48 {
		return key[:48] + "..."
	}
	return key
}
