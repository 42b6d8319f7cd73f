// Command nitter-timeline fetches public timelines through a Nitter front-end
// and writes the normalized records as JSON or NDJSON.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	nitter "github.com/anatolykoptev/go-nitter"
	"github.com/anatolykoptev/go-nitter/export"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:          "nitter-timeline [handles...]",
		Short:        "Fetch public timelines through a Nitter front-end",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := loadSettings(v, cfgFile)
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel(s.LogLevel),
			})))

			handles, err := loadHandles(args, s.InputPath)
			if err != nil {
				return err
			}
			slog.Info("targets", slog.String("handles", strings.Join(handles, ", ")))

			client, err := nitter.NewClient(s.clientConfig())
			if err != nil {
				return fmt.Errorf("client: %w", err)
			}

			batch := client.FetchAll(cmd.Context(), handles)
			if len(batch.Failures) > 0 {
				slog.Warn("some handles failed", slog.Int("failed", len(batch.Failures)))
			}

			w := export.Writer{Path: s.OutputPath, NDJSON: s.NDJSON}
			if err := w.Write(batch.Records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(batch.Records), s.OutputPath)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "settings file (json or yaml)")
	f.Int("max-posts", 50, "maximum posts per handle")
	f.Int("concurrency", 5, "handles fetched in parallel")
	f.String("output", "data/sample.json", "output file")
	f.Bool("ndjson", false, "write one record per line")
	f.Float64("timeout", 20, "per-request timeout in seconds")
	f.String("proxy", "", "forward proxy URL")
	f.String("base", nitter.DefaultBaseURL, "Nitter instance base URL")
	f.String("input", "data/inputs.sample.txt", "file with one handle per line")
	f.Int("log-level", 2, "1 warn, 2 info, 3 debug")

	if err := bindFlags(v, f); err != nil {
		panic(err)
	}
	return cmd
}
