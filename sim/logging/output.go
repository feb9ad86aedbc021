// Package logging provides the simulator's periodic and event loggers: CSV
// census and state-change files, a SQLite store, Prometheus metrics and an
// in-memory event trace.
package logging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedSuffix marks output paths that are zstd-compressed.
const CompressedSuffix = ".zst"

type output struct {
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func (o *output) Write(p []byte) (int, error) { return o.w.Write(p) }

func (o *output) Close() error {
	errs := []error{o.w.Flush()}
	if o.enc != nil {
		errs = append(errs, o.enc.Close())
	}
	errs = append(errs, o.f.Close())
	return errors.Join(errs...)
}

// OpenOutput creates path and its parent directories. Paths ending in
// CompressedSuffix are zstd-compressed.
func OpenOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("empty output path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	o := &output{f: f}
	var dst io.Writer = f
	if strings.HasSuffix(path, CompressedSuffix) {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		o.enc = enc
		dst = enc
	}
	o.w = bufio.NewWriterSize(dst, 128*1024)
	return o, nil
}

type input struct {
	f   *os.File
	dec *zstd.Decoder
}

func (i *input) Read(p []byte) (int, error) {
	if i.dec != nil {
		return i.dec.Read(p)
	}
	return i.f.Read(p)
}

func (i *input) Close() error {
	if i.dec != nil {
		i.dec.Close()
	}
	return i.f.Close()
}

// OpenInput opens a file written by OpenOutput, decompressing it if needed.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	in := &input{f: f}
	if strings.HasSuffix(path, CompressedSuffix) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		in.dec = dec
	}
	return in, nil
}

// formatFloat renders v for CSV output; NaN becomes an empty cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
