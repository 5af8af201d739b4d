package replaylog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Reader streams records from an NDJSON replay log.
type Reader struct {
	sc        *bufio.Scanner
	line      int
	validator *Validator
}

// NewReader reads records from r. v may be nil to skip schema validation.
func NewReader(r io.Reader, v *Validator) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Reader{sc: sc, validator: v}
}

// Line is the 1-based line number of the last record returned by Next.
func (r *Reader) Line() int { return r.line }

// Next returns the next record, or io.EOF once the log is exhausted. Blank lines are skipped.
func (r *Reader) Next() (Record, error) {
	var rec Record
	for r.sc.Scan() {
		r.line++
		b := bytes.TrimSpace(r.sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if r.validator != nil {
			if err := r.validator.ValidateLine(b); err != nil {
				return rec, fmt.Errorf("line %d: %w", r.line, err)
			}
		}
		if err := json.Unmarshal(b, &rec); err != nil {
			return rec, fmt.Errorf("line %d: unmarshal: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return rec, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return rec, io.EOF
}

// Open opens a replay log, decompressing it when the name ends in .zst.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &zstdFile{f: f, dec: dec}, nil
}

type zstdFile struct {
	f   *os.File
	dec *zstd.Decoder
}

func (z *zstdFile) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// ReplayIDFromPath extracts the numeric match id from names like 4621648.json,
// 4621648.jsonl or 4621648.jsonl.zst.
func ReplayIDFromPath(path string) (int64, error) {
	base := filepath.Base(path)
	stem, _, _ := strings.Cut(base, ".")
	id, err := strconv.ParseInt(stem, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("replay id from %q: %w", base, err)
	}
	return id, nil
}

// IsReplayFile reports whether name looks like a replay log (and not fetch metadata).
func IsReplayFile(name string) bool {
	if strings.HasSuffix(name, ".meta.json") {
		return false
	}
	for _, ext := range []string{".json", ".jsonl", ".json.zst", ".jsonl.zst"} {
		if strings.HasSuffix(name, ext) {
			if _, err := ReplayIDFromPath(name); err == nil {
				return true
			}
		}
	}
	return false
}
