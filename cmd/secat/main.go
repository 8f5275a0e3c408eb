// secat extracts content from a file through the secio descriptor layer.
//
// Usage:
//
//	secat [flags] <file>
//
// Flags:
//
//	-d, --delim      Split output on a delimiter, one span per line
//	    --keep-delim Keep the delimiter at the end of each span
//	-c, --chunk      Emit the content in fixed-size chunks
//	-r, --range      Emit the byte range START:STOP[:STEP]
//	-o, --out        Write output atomically to a file instead of stdout
//	    --config     Load defaults from a JSONC config file
//
// Without a mode flag the whole content is emitted as-is. The mode flags
// are mutually exclusive.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/secio/pkg/fd"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}

		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// config holds the file-loadable defaults. Flags override it.
type config struct {
	Delim     string `json:"delim"`
	KeepDelim bool   `json:"keep_delim"`
	ChunkSize int64  `json:"chunk_size"`
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("secat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	delim := fs.StringP("delim", "d", "", "split on delimiter, one span per line")
	keepDelim := fs.Bool("keep-delim", false, "keep the delimiter at the end of each span")
	chunk := fs.Int64P("chunk", "c", 0, "emit fixed-size chunks of N bytes")
	rangeSpec := fs.StringP("range", "r", "", "emit byte range START:STOP[:STEP]")
	out := fs.StringP("out", "o", "", "write output atomically to file")
	configPath := fs.String("config", "", "JSONC config file with defaults")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: secat [flags] <file>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		fs.Usage()

		return errors.New("expected exactly one file argument")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// Flags win over config file values.
	if !fs.Changed("delim") && cfg.Delim != "" {
		*delim = cfg.Delim
	}

	if !fs.Changed("keep-delim") {
		*keepDelim = cfg.KeepDelim
	}

	if !fs.Changed("chunk") && cfg.ChunkSize > 0 {
		*chunk = cfg.ChunkSize
	}

	modes := 0
	for _, set := range []bool{*delim != "", *chunk > 0, *rangeSpec != ""} {
		if set {
			modes++
		}
	}

	if modes > 1 {
		return errors.New("--delim, --chunk and --range are mutually exclusive")
	}

	f, err := fd.NewOpener(fd.Options{}).Open(fs.Arg(0), fd.ReadExisting, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer

	switch {
	case *delim != "":
		err = emitLines(&buf, f, *delim, *keepDelim)
	case *chunk > 0:
		err = emitChunks(&buf, f, *chunk)
	case *rangeSpec != "":
		err = emitRange(&buf, f, *rangeSpec)
	default:
		err = emitAll(&buf, f)
	}

	if err != nil {
		return err
	}

	if *out != "" {
		if err := atomic.WriteFile(*out, &buf); err != nil {
			return fmt.Errorf("writing %s: %w", *out, err)
		}

		return nil
	}

	_, err = stdout.Write(buf.Bytes())

	return err
}

// loadConfig reads a JSONC config file. An empty path yields the zero
// config; a named file must exist and parse.
func loadConfig(path string) (config, error) {
	if path == "" {
		return config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config{}, fmt.Errorf("reading config: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return config{}, fmt.Errorf("config %s: invalid JSONC: %w", path, err)
	}

	var cfg config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return config{}, fmt.Errorf("config %s: invalid JSON: %w", path, err)
	}

	return cfg, nil
}

func emitLines(buf *bytes.Buffer, f *fd.File, delim string, keep bool) error {
	for span, err := range f.Lines([]byte(delim), fd.LinesOptions{KeepDelimiter: keep}) {
		if err != nil {
			return err
		}

		buf.Write(span)

		if !keep {
			buf.WriteByte('\n')
		}
	}

	return nil
}

func emitChunks(buf *bytes.Buffer, f *fd.File, size int64) error {
	for chunk, err := range f.Chunks(size, fd.ChunksOptions{}) {
		if err != nil {
			return err
		}

		buf.Write(chunk)
	}

	return nil
}

func emitRange(buf *bytes.Buffer, f *fd.File, spec string) error {
	start, stop, step, err := parseRange(spec)
	if err != nil {
		return err
	}

	data, err := f.Range(start, stop, step)
	if err != nil {
		return err
	}

	buf.Write(data)

	return nil
}

func emitAll(buf *bytes.Buffer, f *fd.File) error {
	data, err := f.ReadAll()
	if err != nil {
		return err
	}

	buf.Write(data)

	return nil
}

// parseRange parses START:STOP or START:STOP:STEP.
func parseRange(spec string) (start, stop, step int64, err error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid range %q, want START:STOP[:STEP]", spec)
	}

	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid range start %q: %w", parts[0], err)
	}

	stop, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid range stop %q: %w", parts[1], err)
	}

	step = 1

	if len(parts) == 3 {
		step, err = strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range step %q: %w", parts[2], err)
		}
	}

	return start, stop, step, nil
}
