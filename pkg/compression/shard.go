// Package compression reads and writes the gzip line shards of a batch.
package compression

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

const partSuffix = ".part"

// Reader streams the lines of a gzip shard.
type Reader struct {
	f       *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
}

// Open opens the gzip shard at path for line reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip header %s: %w", path, err)
	}

	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{f: f, gz: gz, scanner: sc}, nil
}

// Next returns the next line without its terminator.
func (r *Reader) Next() (string, bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	return r.scanner.Text(), true
}

// Err is the first non-EOF error met by Next.
func (r *Reader) Err() error {
	return r.scanner.Err()
}

func (r *Reader) Close() error {
	return errors.Join(r.gz.Close(), r.f.Close())
}

// Writer writes a gzip shard to <path>.part and publishes it at path on Commit,
// so a shard that exists under its final name is always complete.
type Writer struct {
	path    string
	f       *os.File
	counter *sizeCounter
	gz      *gzip.Writer
	buf     *bufio.Writer
	lines   int64
	done    bool
}

// Create starts a shard at path with the given gzip level
// (gzip.DefaultCompression when 0).
func Create(path string, level int) (*Writer, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	f, err := os.Create(path + partSuffix)
	if err != nil {
		return nil, err
	}
	counter := &sizeCounter{w: f}
	gz, err := gzip.NewWriterLevel(counter, level)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("gzip level %d: %w", level, err)
	}
	return &Writer{
		path:    path,
		f:       f,
		counter: counter,
		gz:      gz,
		buf:     bufio.NewWriter(gz),
	}, nil
}

// WriteLine appends line and a newline.
func (w *Writer) WriteLine(line string) error {
	if _, err := w.buf.WriteString(line); err != nil {
		return err
	}
	w.lines++
	return w.buf.WriteByte('\n')
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Lines is the number of lines written through WriteLine.
func (w *Writer) Lines() int64 { return w.lines }

// Commit flushes, closes and renames the shard into place. It returns the
// compressed size.
func (w *Writer) Commit() (int64, error) {
	if w.done {
		return w.counter.size, nil
	}
	w.done = true

	err := w.buf.Flush()
	if err == nil {
		err = w.gz.Close()
	}
	if err == nil {
		err = w.f.Sync()
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(w.f.Name())
		return 0, fmt.Errorf("finish %s: %w", w.path, err)
	}
	if err := os.Rename(w.f.Name(), w.path); err != nil {
		os.Remove(w.f.Name())
		return 0, fmt.Errorf("publish %s: %w", w.path, err)
	}
	return w.counter.size, nil
}

// Abort discards the partial shard. It is a no-op after Commit.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.gz.Close()
	w.f.Close()
	if err := os.Remove(w.f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// sizeCounter counts the compressed bytes that reach the file.
type sizeCounter struct {
	w    io.Writer
	size int64
}

func (c *sizeCounter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.size += int64(n)
	return n, err
}
