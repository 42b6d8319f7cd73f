// Package export writes timeline records to disk as a JSON array or NDJSON.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	nitter "github.com/anatolykoptev/go-nitter"
)

// Writer serializes records to Path. With NDJSON set every record is written
// on its own line, otherwise the whole batch is one indented JSON array.
type Writer struct {
	Path   string
	NDJSON bool
}

// Write creates parent directories and replaces the file at w.Path.
func (w Writer) Write(records []nitter.Record) error {
	if dir := filepath.Dir(w.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", w.Path, err)
	}

	bw := bufio.NewWriter(f)
	if w.NDJSON {
		err = writeNDJSON(bw, records)
	} else {
		err = writeArray(bw, records)
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", w.Path, err)
	}

	format := "json"
	if w.NDJSON {
		format = "ndjson"
	}
	slog.Info("records written",
		slog.String("path", w.Path),
		slog.String("format", format),
		slog.Int("count", len(records)))
	return nil
}

func writeArray(bw *bufio.Writer, records []nitter.Record) error {
	if records == nil {
		records = []nitter.Record{}
	}
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeNDJSON(bw *bufio.Writer, records []nitter.Record) error {
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
