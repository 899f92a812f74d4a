package logging

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	defaultDateFormat = "2006-01-02T15:04:05Z"

	plainTemplate = "{time} {level} {source}:{line} : {message}"
	colorTemplate = "{gray}{time}{reset} {color}{level}{reset} " +
		"{gray}{source}:{line}{reset} : {message}"
)

// ANSI escape sequences, both CSI and two-byte forms.
var ansiEscape = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

const (
	hueReset = "\x1b[0m"
	hueGray  = "\x1b[38;5;242m"
)

var levelHues = map[logrus.Level]string{
	logrus.TraceLevel: "\x1b[38;5;128m",
	logrus.DebugLevel: "\x1b[38;5;14m",
	logrus.InfoLevel:  "\x1b[38;5;41m",
	logrus.WarnLevel:  "\x1b[38;5;215m",
	logrus.ErrorLevel: "\x1b[38;5;204m",
	logrus.FatalLevel: "\x1b[38;5;197m",
	logrus.PanicLevel: "\x1b[38;5;197m",
}

// Formatter renders a log entry as a single text line. A Formatter is bound
// to one destination: Colors reports whether that destination renders ANSI
// escapes. Entries are treated as immutable; every render derives the line
// from the entry without touching shared state, so the same entry may be
// formatted by the console and file sinks in any order.
type Formatter struct {
	// Template overrides the default line layout. Recognized tokens:
	// {time}, {level}, {source}, {line}, {message}, {gray}, {color} and
	// {reset}. Color tokens resolve to empty strings when Colors is false.
	Template string

	// DateFormat is the time layout for the {time} token. Defaults to an
	// ISO-8601 layout in UTC.
	DateFormat string

	// Colors enables the ANSI hue table. When false the rendered line is
	// plain text and any escape sequences carried inside the message are
	// stripped, so non-interactive sinks never see leftover escapes.
	Colors bool
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	dateFormat := f.DateFormat
	if dateFormat == "" {
		dateFormat = defaultDateFormat
	}
	template := f.Template
	if template == "" {
		if f.Colors {
			template = colorTemplate
		} else {
			template = plainTemplate
		}
	}

	source, line := callerLabel(entry)
	message := entry.Message
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok && err != nil {
		message = errorMessage(err, entry, line)
	}

	hue, gray, reset := "", "", ""
	if f.Colors {
		hue = levelHues[entry.Level]
		gray = hueGray
		reset = hueReset
	} else {
		message = ansiEscape.ReplaceAllString(message, "")
	}

	rendered := strings.NewReplacer(
		"{time}", entry.Time.UTC().Format(dateFormat),
		"{level}", fmt.Sprintf("%8s", levelName(entry.Level)),
		"{source}", source,
		"{line}", strconv.Itoa(line),
		"{message}", message,
		"{gray}", gray,
		"{color}", hue,
		"{reset}", reset,
	).Replace(template)

	var buf bytes.Buffer
	buf.WriteString(rendered)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func levelName(level logrus.Level) string {
	if level == logrus.WarnLevel {
		return "WARNING"
	}
	return strings.ToUpper(level.String())
}

func callerLabel(entry *logrus.Entry) (string, int) {
	if entry.Caller == nil {
		return "shell", 0
	}
	return sourceLabel(entry.Caller.Function), entry.Caller.Line
}

// sourceLabel rewrites a fully qualified function name into a dotted
// "module.function" style label. The import path's VCS host and owner
// segments are dropped, separators become dots and anonymous closure
// suffixes are trimmed. The rewrite is idempotent: a label that is already
// dotted passes through unchanged.
func sourceLabel(function string) string {
	if function == "" {
		return "shell"
	}
	slash := strings.LastIndex(function, "/")
	if slash < 0 {
		return trimAnonymous(function)
	}
	parts := strings.Split(function[:slash], "/")
	if len(parts) >= 2 && strings.Contains(parts[0], ".") {
		parts = parts[2:]
	}
	parts = append(parts, function[slash+1:])
	return trimAnonymous(strings.Join(parts, "."))
}

func trimAnonymous(label string) string {
	label = strings.ReplaceAll(label, "..", ".")
	segments := strings.Split(label, ".")
	for len(segments) > 1 && isAnonymousScope(segments[len(segments)-1]) {
		segments = segments[:len(segments)-1]
	}
	return strings.Join(segments, ".")
}

// isAnonymousScope reports whether a trailing segment names a compiler
// generated closure (func1, func2.1, ...) rather than a declared function.
func isAnonymousScope(segment string) bool {
	if !strings.HasPrefix(segment, "func") {
		return false
	}
	rest := segment[len("func"):]
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

// errorMessage replaces the message body for entries that carry an error,
// naming the error's concrete kind and the call site that reported it.
func errorMessage(err error, entry *logrus.Entry, line int) string {
	site := "on"
	if entry.Caller != nil {
		if fn := functionName(entry.Caller.Function); fn != "" {
			site = fmt.Sprintf("in %s() on", fn)
		}
	}
	return fmt.Sprintf("%s: %s %s line %d", errorKind(err), err.Error(), site, line)
}

func functionName(function string) string {
	if function == "" {
		return ""
	}
	base := function
	if slash := strings.LastIndex(base, "/"); slash >= 0 {
		base = base[slash+1:]
	}
	base = strings.ReplaceAll(base, "..", ".")
	if dot := strings.LastIndex(base, "."); dot >= 0 {
		base = base[dot+1:]
	}
	if isAnonymousScope(base) {
		return ""
	}
	return base
}

func errorKind(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "error"
	}
	return t.Name()
}
