package poisson

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrToolNotFound is returned when a tool executable cannot be located.
var ErrToolNotFound = errors.New("executable not found")

// Cause is a coarse classification of why a tool run failed.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseOutOfMemory
	CauseUnreadableInput
	CauseIO
	CauseInterrupted
)

func (c Cause) String() string {
	switch c {
	case CauseOutOfMemory:
		return "out of memory"
	case CauseUnreadableInput:
		return "unreadable input"
	case CauseIO:
		return "i/o error"
	case CauseInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// Output patterns, checked in order; the first match wins.
var (
	reOutOfMemory = regexp.MustCompile(
		`(?i)std::bad_alloc|out of memory|cannot allocate memory|failed to allocate`)

	reUnreadableInput = regexp.MustCompile(
		`(?i)failed to open file for reading|could not open .* for reading|` +
			`failed to read (ply )?header|unrecognized file extension|` +
			`bad ply|no such file or directory`)

	reIOError = regexp.MustCompile(
		`(?i)failed to open file for writing|could not open .* for writing|` +
			`no space left on device|permission denied|read-only file system`)
)

// Classify inspects tool output and returns the most likely Cause.
func Classify(output string) Cause {
	switch {
	case reOutOfMemory.MatchString(output):
		return CauseOutOfMemory
	case reUnreadableInput.MatchString(output):
		return CauseUnreadableInput
	case reIOError.MatchString(output):
		return CauseIO
	}
	return CauseUnknown
}

// ErrorMessage returns the message of the last "[ERROR]" report in output,
// or "". The tools print the marker with the source location, then indented
// lines naming the failing function and finally the message, so the last
// indented line is returned. A marker without indented lines yields its own
// text.
func ErrorMessage(output string) string {
	lines := strings.Split(output, "\n")
	last := -1
	for i, l := range lines {
		if strings.Contains(l, "[ERROR]") {
			last = i
		}
	}
	if last < 0 {
		return ""
	}

	head := strings.TrimSpace(lines[last][strings.Index(lines[last], "[ERROR]")+len("[ERROR]"):])
	var detail []string
	for _, l := range lines[last+1:] {
		if l == "" || (l[0] != ' ' && l[0] != '\t') {
			break
		}
		detail = append(detail, strings.TrimSpace(l))
	}
	if len(detail) == 0 {
		return head
	}
	return detail[len(detail)-1]
}

// ToolError describes a failed tool run.
type ToolError struct {
	Tool    string   // "reconstruct" or "trim"
	Bin     string   // executable as configured
	Args    []string // arguments, without the program name
	Err     error    // exit error, start error, or context error
	Cause   Cause
	Message string // last "[ERROR]" message, may be empty
	Output  string // tail of combined stdout/stderr
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed: %v", e.Bin, e.Err)
	if e.Cause != CauseUnknown {
		fmt.Fprintf(&b, " (%s)", e.Cause)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Err }
