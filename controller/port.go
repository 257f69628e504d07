package controller

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// LinePort adapts a byte stream to the dispatcher's polled line
// interface. A reader goroutine buffers complete lines so ReadLine
// never blocks the control loop.
type LinePort struct {
	lines chan string
	w     io.Writer
}

func NewLinePort(r io.Reader, w io.Writer) *LinePort {
	p := &LinePort{lines: make(chan string, 16), w: w}
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			p.lines <- strings.TrimRight(sc.Text(), "\r")
		}
		close(p.lines)
	}()
	return p
}

func (p *LinePort) ReadLine() (string, bool) {
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", false
		}
		return line, true
	default:
		return "", false
	}
}

func (p *LinePort) WriteLine(s string) { fmt.Fprintln(p.w, s) }
