package tardi

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Reader is an input handle value: stdin or an opened file. Once a read has
// drained it, consumed is set and read-lines answers #f, the idiomatic
// end-of-stream signal.
type Reader struct {
	kind     handleKind
	path     string
	file     *os.File
	r        *bufio.Reader
	consumed bool
}

// NewFileReader opens path for reading.
func NewFileReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr(err)
	}
	return &Reader{kind: handleFile, path: path, file: f, r: bufio.NewReader(f)}, nil
}

func newStdReader(in io.Reader) *Reader {
	return &Reader{kind: handleStd, r: bufio.NewReader(in)}
}

func (*Reader) Kind() Kind { return KindReader }

func (r *Reader) String() string {
	if r.kind == handleStd {
		return "<stdin>"
	}
	return "<reader " + r.path + ">"
}

// Path is the file path the reader displays, empty for stdin.
func (r *Reader) Path() (string, bool) { return r.path, r.kind == handleFile }

// Consumed reports whether a read has drained the stream.
func (r *Reader) Consumed() bool { return r.consumed }

// ReadAll drains the remaining input as one string.
func (r *Reader) ReadAll() (string, error) {
	var sb strings.Builder
	if _, err := io.Copy(&sb, r.r); err != nil {
		return "", ioErr(err)
	}
	r.consumed = true
	return sb.String(), nil
}

// ReadLine reads one line without its terminator. The bool result is false
// at end of stream.
func (r *Reader) ReadLine() (string, bool, error) {
	line, err := r.r.ReadString('\n')
	if err == io.EOF {
		r.consumed = true
		if line == "" {
			return "", false, nil
		}
		return line, true, nil
	}
	if err != nil {
		return "", false, ioErr(err)
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}

// ReadLines drains the remaining input as a slice of lines.
func (r *Reader) ReadLines() ([]string, error) {
	content, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
