// Package logging owns the process-wide logging configuration for xacker.
//
// Init wires a console sink and, unless suppressed, a size-rotating file
// sink onto a single logrus logger. Calling Init again detaches and releases
// the previously attached sinks before installing new ones, so exactly one
// sink set is ever active.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xames3/xacker/internal/envflag"
)

const (
	// EnvLevel names a logging level (TRACE, DEBUG, INFO, WARNING, ERROR,
	// CRITICAL, FATAL) and overrides both the explicit level and the
	// verbosity counter.
	EnvLevel = "XACKER_LOGGING_LEVEL"

	// EnvSkipLogging suppresses the file sink when set to a truthy value,
	// regardless of CLI flags.
	EnvSkipLogging = "XACKER_SKIP_LOGGING"

	defaultMaxBytes    = 10_000_000
	defaultBackupCount = 10
)

// DefaultLogFile returns the default session log path under the user's home.
func DefaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".xacker", "session.log")
}

var levelsByName = map[string]logrus.Level{
	"TRACE":    logrus.TraceLevel,
	"DEBUG":    logrus.DebugLevel,
	"INFO":     logrus.InfoLevel,
	"WARN":     logrus.WarnLevel,
	"WARNING":  logrus.WarnLevel,
	"ERROR":    logrus.ErrorLevel,
	"CRITICAL": logrus.FatalLevel,
	"FATAL":    logrus.FatalLevel,
	"NOTSET":   logrus.TraceLevel,
}

// Levels on the historical numeric scale accepted by --level.
var levelsByValue = map[int]logrus.Level{
	0:  logrus.TraceLevel,
	10: logrus.DebugLevel,
	20: logrus.InfoLevel,
	30: logrus.WarnLevel,
	40: logrus.ErrorLevel,
	50: logrus.FatalLevel,
	60: logrus.TraceLevel,
}

var verbosityLevels = map[int]logrus.Level{
	0: logrus.WarnLevel,
	1: logrus.InfoLevel,
	2: logrus.DebugLevel,
}

// Options configures the sink set installed by Init. The zero value attaches
// a console sink on stderr at WARNING and a rotating file sink at the
// default session log path.
type Options struct {
	// Level is the explicit minimum level, either by name ("DEBUG") or on
	// the numeric scale (40). Empty means the verbosity counter decides.
	Level string

	// Verbosity is the additive -v counter: 0 maps to WARNING, 1 to INFO
	// and 2 or more to DEBUG.
	Verbosity int

	// Format and DateFormat override the formatter templates.
	Format     string
	DateFormat string

	// NoColor suppresses colorized console output even on a terminal.
	NoColor bool

	// File is the log file path; empty selects the default session log.
	File        string
	MaxBytes    int
	BackupCount int

	// SkipFile suppresses the file sink entirely.
	SkipFile bool

	// Stream is the console sink destination, stderr when nil.
	Stream *os.File
}

var (
	mu         sync.Mutex
	logger     = logrus.New()
	fileSink   *lumberjack.Logger
	stdlogPipe *io.PipeWriter
)

// Logger returns the process-wide logger. Before Init it carries logrus
// defaults; components should nevertheless receive the logger from Init.
func Logger() *logrus.Logger {
	return logger
}

// Init installs the console and file sinks described by opts and returns the
// configured logger. It is idempotent: previously attached sinks are
// detached and their file handles released before the new ones attach.
func Init(opts Options) (*logrus.Logger, error) {
	level, err := ResolveLevel(opts.Level, opts.Verbosity)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	if fileSink != nil {
		if err := fileSink.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "xacker: close log file: %v\n", err)
		}
		fileSink = nil
	}
	if stdlogPipe != nil {
		stdlogPipe.Close()
		stdlogPipe = nil
	}
	logger.ReplaceHooks(make(logrus.LevelHooks))

	stream := opts.Stream
	if stream == nil {
		stream = os.Stderr
	}

	logger.SetLevel(level)
	logger.SetOutput(stream)
	logger.SetReportCaller(true)
	logger.SetFormatter(&Formatter{
		Template:   opts.Format,
		DateFormat: opts.DateFormat,
		Colors:     !opts.NoColor && isTerminal(stream),
	})

	if !skipFileLogs(opts.SkipFile) {
		path, err := setupLogsDir(opts.File)
		if err != nil {
			// Directory creation is best-effort; the console sink keeps
			// working without the file sink.
			logger.WithError(err).Warn("Unable to prepare the log directory")
		} else {
			maxBytes := opts.MaxBytes
			if maxBytes <= 0 {
				maxBytes = defaultMaxBytes
			}
			backups := opts.BackupCount
			if backups <= 0 {
				backups = defaultBackupCount
			}
			fileSink = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    megabytes(maxBytes),
				MaxBackups: backups,
			}
			logger.AddHook(&fileHook{
				sink: fileSink,
				formatter: &Formatter{
					Template:   opts.Format,
					DateFormat: opts.DateFormat,
				},
			})
		}
	}

	// Route stdlib log output through the same sinks so runtime-emitted
	// warnings land in the session log too. The pipe writer is retained so
	// re-initialization can close it and stop its reader.
	stdlogPipe = logger.WriterLevel(logrus.WarnLevel)
	log.SetFlags(0)
	log.SetOutput(stdlogPipe)

	logger.WithField("session", uuid.NewString()).Debug("Logging initialized")
	return logger, nil
}

// ResolveLevel applies the precedence order: environment override, explicit
// level, verbosity counter.
func ResolveLevel(explicit string, verbosity int) (logrus.Level, error) {
	if name := strings.TrimSpace(os.Getenv(EnvLevel)); name != "" {
		level, ok := levelsByName[strings.ToUpper(name)]
		if !ok {
			return 0, fmt.Errorf("unresolvable logging level %q in %s", name, EnvLevel)
		}
		return level, nil
	}
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if level, ok := levelsByName[strings.ToUpper(explicit)]; ok {
			return level, nil
		}
		value, err := strconv.Atoi(explicit)
		if err != nil {
			return 0, fmt.Errorf("unresolvable logging level %q", explicit)
		}
		level, ok := levelsByValue[value]
		if !ok {
			return 0, fmt.Errorf("unresolvable logging level %d", value)
		}
		return level, nil
	}
	if verbosity > 2 {
		verbosity = 2
	}
	if verbosity < 0 {
		verbosity = 0
	}
	return verbosityLevels[verbosity], nil
}

// skipFileLogs reports whether the file sink must be suppressed, either by
// flag or by the environment override, which always wins.
func skipFileLogs(choice bool) bool {
	return choice || envflag.Enabled(EnvSkipLogging)
}

// setupLogsDir resolves the log file path and creates its parent directory
// when absent.
func setupLogsDir(path string) (string, error) {
	if path == "" {
		path = DefaultLogFile()
	}
	if _, err := os.Stat(path); err != nil {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return "", fmt.Errorf("create log directory: %w", mkErr)
		}
	}
	return path, nil
}

func megabytes(bytes int) int {
	const mb = 1024 * 1024
	size := bytes / mb
	if bytes%mb != 0 || size == 0 {
		size++
	}
	return size
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// fileHook mirrors every entry into the rotating file sink using the plain
// formatter, keeping the session log free of ANSI escapes.
type fileHook struct {
	sink      io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.sink.Write(line)
	return err
}
