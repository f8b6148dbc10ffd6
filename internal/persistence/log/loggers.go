package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/protocol"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadJSONL decodes every line of the prefix's files under dir, oldest file
// first, calling fn with each raw line.
func ReadJSONL(dir, prefix string, fn func(json.RawMessage) error) error {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := readFile(p, fn); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func readFile(path string, fn func(json.RawMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	br := bufio.NewReader(dec)
	for {
		line, err := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			if ferr := fn(json.RawMessage(line)); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// BatchEntry is one committed batch in the emission journal.
type BatchEntry struct {
	RunID     string `json:"run_id"`
	Seq       int    `json:"seq"`
	Cells     int    `json:"cells"`
	First     [3]int `json:"first"`
	Last      [3]int `json:"last"`
	Attempts  int    `json:"attempts"`
	ElapsedMs int64  `json:"elapsed_ms"`
	At        string `json:"at"`
}

// Journal writes one JSONL entry per committed batch, plus the final run
// report, under runDir/journal.
type Journal struct {
	runID string
	w     *JSONLZstdWriter
}

var _ emit.Journal = (*Journal)(nil)

func NewJournal(runDir, runID string) *Journal {
	return &Journal{runID: runID, w: NewJSONLZstdWriter(filepath.Join(runDir, "journal"), "batches")}
}

func (j *Journal) BatchCommitted(_ context.Context, c emit.Committed) error {
	first, last := c.Batch.First(), c.Batch.Last()
	return j.w.Write(BatchEntry{
		RunID:     j.runID,
		Seq:       c.Batch.Seq,
		Cells:     c.Batch.Cells,
		First:     [3]int{first.X, first.Y, first.Z},
		Last:      [3]int{last.X, last.Y, last.Z},
		Attempts:  c.Attempts,
		ElapsedMs: c.Elapsed.Milliseconds(),
		At:        time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// WriteReport appends the run summary as the journal's last line.
func (j *Journal) WriteReport(r protocol.RunReport) error { return j.w.Write(r) }

func (j *Journal) Close() error { return j.w.Close() }

// ReadBatches returns the batch entries journaled under runDir, in order.
func ReadBatches(runDir string) ([]BatchEntry, error) {
	var out []BatchEntry
	err := ReadJSONL(filepath.Join(runDir, "journal"), "batches", func(raw json.RawMessage) error {
		var peek struct {
			Seq   *int `json:"seq"`
			Cells *int `json:"cells"`
		}
		if err := json.Unmarshal(raw, &peek); err != nil {
			return err
		}
		if peek.Seq == nil || peek.Cells == nil {
			return nil // run report
		}
		var e BatchEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}
