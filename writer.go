package tardi

import (
	"io"
	"os"

	"github.com/tardi-lang/tardi/internal/flushio"
)

type handleKind int

const (
	handleStd handleKind = iota
	handleErr
	handleFile
)

// Writer is an output handle value: stdout, stderr, or an opened file. File
// writers buffer and must be flushed or closed.
type Writer struct {
	kind handleKind
	path string
	file *os.File
	w    flushio.WriteFlusher
}

// NewFileWriter opens (and truncates) path for writing.
func NewFileWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, ioErr(err)
	}
	return &Writer{kind: handleFile, path: path, file: f, w: flushio.NewWriteFlusher(f)}, nil
}

func newStdWriter(kind handleKind, w flushio.WriteFlusher) *Writer {
	return &Writer{kind: kind, w: w}
}

func (*Writer) Kind() Kind { return KindWriter }

func (w *Writer) String() string {
	switch w.kind {
	case handleStd:
		return "<stdout>"
	case handleErr:
		return "<stderr>"
	}
	return "<writer " + w.path + ">"
}

// Path is the file path the writer displays, empty for the standard
// handles.
func (w *Writer) Path() (string, bool) { return w.path, w.kind == handleFile }

func (w *Writer) Write(p []byte) (int, error) { return w.w.Write(p) }

// Flush drains buffered output.
func (w *Writer) Flush() error { return w.w.Flush() }

// Close flushes and, for file writers, closes the underlying file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

var _ io.Writer = (*Writer)(nil)
