// Package stdio carries protocol messages as newline-delimited JSON over a
// reader/writer pair, typically a pack process's stdin/stdout.
package stdio

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// maxLine bounds a single message; cached values can be large.
const maxLine = 8 << 20

// Transport implements bridge.Transport over NDJSON streams.
type Transport struct {
	w     io.Writer
	wmu   sync.Mutex
	lines chan []byte
	errCh chan error
}

// New starts reading r line by line. Blank lines are skipped.
func New(r io.Reader, w io.Writer) *Transport {
	t := &Transport{w: w, lines: make(chan []byte, 16), errCh: make(chan error, 1)}
	go t.scan(r)
	return t
}

func (t *Transport) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		t.lines <- []byte(line)
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	t.errCh <- err
}

// Read returns the next message or the stream error once input ends.
func (t *Transport) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case line := <-t.lines:
		return line, nil
	case err := <-t.errCh:
		// Put the error back for subsequent reads.
		t.errCh <- err
		return nil, err
	}
}

// Write emits one message followed by a newline.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.w.Write(data); err != nil {
		return err
	}
	_, err := t.w.Write([]byte{'\n'})
	return err
}

// Close closes the writer when it supports closing.
func (t *Transport) Close() error {
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
