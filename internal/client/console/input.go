package console

import (
	"bufio"
	"io"
	"time"
)

// Input reads lines in the background so the send loop can wait for one
// with a deadline.
type Input struct {
	lines chan string
}

func NewInput(r io.Reader) *Input {
	in := &Input{lines: make(chan string, 16)}
	go func() {
		defer close(in.lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			in.lines <- scanner.Text()
		}
	}()
	return in
}

// Poll waits up to timeout for a line. It returns io.EOF once the reader is
// exhausted.
func (in *Input) Poll(timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-in.lines:
		if !ok {
			return "", false, io.EOF
		}
		return line, true, nil
	case <-timer.C:
		return "", false, nil
	}
}
