package instrument

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// BufferedFileWriter is a WriteInstrument over an os.File, buffered the way
// the teacher's replay recorder writes its header and input frames: small
// sequential writes batched through bufio rather than one syscall each.
type BufferedFileWriter struct {
	windowStack
	file   *os.File
	buf    *bufio.Writer
	offset int64
}

// NewBufferedFileWriter creates path (truncating any existing file) and
// wraps it for buffered sequential writes.
func NewBufferedFileWriter(path string) (*BufferedFileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("instrument: create %s: %w", path, err)
	}
	return &BufferedFileWriter{file: f, buf: bufio.NewWriter(f)}, nil
}

func (w *BufferedFileWriter) Offset() (int64, error) {
	return w.relative(w.offset), nil
}

func (w *BufferedFileWriter) Write(data []byte) error {
	if win, ok := w.current(); ok && w.offset+int64(len(data)) > win.start+win.size {
		return ErrOutOfRange
	}
	n, err := w.buf.Write(data)
	w.offset += int64(n)
	if err != nil {
		return fmt.Errorf("instrument: write: %w", err)
	}
	return nil
}

// Seek flushes buffered data and repositions the underlying file, since
// bufio.Writer cannot seek mid-buffer.
func (w *BufferedFileWriter) Seek(mode SeekMode, offset int64) error {
	size, err := w.fileSize()
	if err != nil {
		return err
	}
	target, err := w.resolveSeek(mode, offset, w.offset, size)
	if err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("instrument: flush before seek: %w", err)
	}
	if _, err := w.file.Seek(target, io.SeekStart); err != nil {
		return fmt.Errorf("instrument: seek: %w", err)
	}
	w.offset = target
	return nil
}

func (w *BufferedFileWriter) fileSize() (int64, error) {
	if err := w.buf.Flush(); err != nil {
		return 0, fmt.Errorf("instrument: flush: %w", err)
	}
	info, err := w.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("instrument: stat: %w", err)
	}
	return info.Size(), nil
}

func (w *BufferedFileWriter) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("instrument: flush: %w", err)
	}
	return nil
}

func (w *BufferedFileWriter) IsSizeDetermination() bool { return false }

func (w *BufferedFileWriter) PushSubinstrument(sizeBytes int64) error {
	return w.push(w.offset, sizeBytes)
}

func (w *BufferedFileWriter) PopSubinstrument() error {
	win, err := w.pop()
	if err != nil {
		return err
	}
	end := win.start + win.size
	if end != w.offset {
		// Caller wrote less than reserved; advance the parent cursor to
		// honor the original reservation, zero-filling whatever part of it
		// lies past the current end of the file.
		size, err := w.fileSize()
		if err != nil {
			return err
		}
		pos := end
		if size < pos {
			pos = size
		}
		if _, err := w.file.Seek(pos, io.SeekStart); err != nil {
			return fmt.Errorf("instrument: seek: %w", err)
		}
		w.offset = pos
		return w.Write(make([]byte, end-pos))
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *BufferedFileWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("instrument: flush on close: %w", err)
	}
	return w.file.Close()
}

// BufferedFileReader is a ReadInstrument over an os.File.
type BufferedFileReader struct {
	windowStack
	file   *os.File
	buf    *bufio.Reader
	offset int64
	size   int64
}

// NewBufferedFileReader opens path for buffered sequential reads.
func NewBufferedFileReader(path string) (*BufferedFileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("instrument: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("instrument: stat %s: %w", path, err)
	}
	return &BufferedFileReader{file: f, buf: bufio.NewReader(f), size: info.Size()}, nil
}

func (r *BufferedFileReader) Offset() (int64, error) {
	return r.relative(r.offset), nil
}

func (r *BufferedFileReader) Read(out []byte) error {
	end := r.offset + int64(len(out))
	if !r.inBounds(end) {
		return ErrOutOfRange
	}
	if _, err := io.ReadFull(r.buf, out); err != nil {
		return fmt.Errorf("instrument: read: %w", err)
	}
	r.offset = end
	return nil
}

// ReferenceData copies size bytes into a freshly allocated slice: a plain
// file cannot hand back a zero-copy view the way MemoryReader can.
func (r *BufferedFileReader) ReferenceData(size int64) ([]byte, error) {
	out := make([]byte, size)
	if err := r.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BufferedFileReader) inBounds(absEnd int64) bool {
	limit := r.size
	if win, ok := r.current(); ok {
		limit = win.start + win.size
	}
	return absEnd >= 0 && absEnd <= limit
}

func (r *BufferedFileReader) Seek(mode SeekMode, offset int64) error {
	target, err := r.resolveSeek(mode, offset, r.offset, r.size)
	if err != nil {
		return err
	}
	// bufio.Reader has no Seek; re-seek the file and discard read-ahead.
	if _, err := r.file.Seek(target, io.SeekStart); err != nil {
		return fmt.Errorf("instrument: seek: %w", err)
	}
	r.buf.Reset(r.file)
	r.offset = target
	return nil
}

func (r *BufferedFileReader) TotalSize() (int64, error) {
	if win, ok := r.current(); ok {
		return win.size, nil
	}
	return r.size, nil
}

func (r *BufferedFileReader) IsEndReached() (bool, error) {
	limit := r.size
	if win, ok := r.current(); ok {
		limit = win.start + win.size
	}
	return r.offset >= limit, nil
}

func (r *BufferedFileReader) PushSubinstrument(sizeBytes int64) error {
	return r.push(r.offset, sizeBytes)
}

func (r *BufferedFileReader) PopSubinstrument() error {
	win, err := r.pop()
	if err != nil {
		return err
	}
	if end := win.start + win.size; end != r.offset {
		if _, err := r.file.Seek(end, io.SeekStart); err != nil {
			return fmt.Errorf("instrument: seek: %w", err)
		}
		r.buf.Reset(r.file)
		r.offset = end
	}
	return nil
}

// Close closes the underlying file.
func (r *BufferedFileReader) Close() error {
	return r.file.Close()
}
