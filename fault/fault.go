// Package fault implements the sticky error reporting used across the
// controller: every subsystem latches at most one human-readable message,
// the first message wins, and reading the message clears the latch.
// Numeric error codes travel separately so the command channel can reply
// with a compact ERROR=<n> while the text stays queryable.
package fault

import "fmt"

// Code identifies the layer an error originated from. The values are part
// of the serial protocol (replies are "ERROR=<code>").
type Code int8

const (
	CodeNone   Code = 0
	CodeSerial Code = -1
	CodeMotion Code = -2
	CodeDriver Code = -3
	CodeParam  Code = -4
	CodeRemote Code = -5
)

type codedError struct {
	code Code
	msg  string
}

func (e *codedError) Error() string { return e.msg }

// Coded returns an error carrying a protocol error code.
func Coded(code Code, msg string) error {
	return &codedError{code: code, msg: msg}
}

// Codedf is Coded with formatting.
func Codedf(code Code, format string, args ...interface{}) error {
	return &codedError{code: code, msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the protocol code from an error. A nil error maps to
// CodeNone; errors without a code are attributed to the motion layer,
// which is the catch-all the original reply scheme used.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	if ce, ok := err.(*codedError); ok {
		return ce.code
	}
	return CodeMotion
}

// Latch holds a single pending message. Set keeps the first message until
// Read clears it, so a burst of faults reports its root cause rather than
// the last symptom.
type Latch struct {
	msg     string
	pending bool
}

// Set latches msg if no message is pending.
func (l *Latch) Set(msg string) {
	if l.pending {
		return
	}
	l.msg = msg
	l.pending = true
}

// Setf is Set with formatting.
func (l *Latch) Setf(format string, args ...interface{}) {
	if l.pending {
		return
	}
	l.msg = fmt.Sprintf(format, args...)
	l.pending = true
}

// Pending reports whether a message is latched.
func (l *Latch) Pending() bool { return l.pending }

// Read returns the latched message and clears the latch.
func (l *Latch) Read() (string, bool) {
	if !l.pending {
		return "", false
	}
	l.pending = false
	return l.msg, true
}
