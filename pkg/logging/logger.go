package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI color codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	White  = "\033[37m"
	Gray   = "\033[90m"

	BrightRed     = "\033[91m"
	BrightGreen   = "\033[92m"
	BrightYellow  = "\033[93m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
	BrightWhite   = "\033[97m"
)

// ColoredLogger wraps zap.Logger with colored output
type ColoredLogger struct {
	*zap.Logger
	enableColors bool
}

// Component represents different parts of the system for color coding
type Component string

const (
	ComponentDiscovery  Component = "DISCOVERY"
	ComponentConnection Component = "CONNECTION"
	ComponentStream     Component = "STREAM"
	ComponentExport     Component = "EXPORT"
	ComponentReceiver   Component = "RECEIVER"
	ComponentGateway    Component = "GATEWAY"
	ComponentGeneral    Component = "GENERAL"
)

// Options controls how NewLogger builds its core.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is "console" (colored, compact) or "json".
	Format string
	// Color enables ANSI colors for the console format.
	Color bool
	// File, when set, sends output to the file instead of stdout.
	File string
}

// getComponentColor returns the color for a specific component
func getComponentColor(component Component) string {
	switch component {
	case ComponentDiscovery:
		return BrightCyan
	case ComponentConnection:
		return BrightBlue
	case ComponentStream:
		return BrightMagenta
	case ComponentExport:
		return BrightYellow
	case ComponentReceiver:
		return Green
	case ComponentGateway:
		return BrightGreen
	case ComponentGeneral:
		return Yellow
	default:
		return White
	}
}

// levelStyle is the letter and color a level renders with on the console.
var levelStyle = map[zapcore.Level]struct{ letter, color string }{
	zapcore.DebugLevel:  {"D", Gray},
	zapcore.InfoLevel:   {"I", BrightWhite},
	zapcore.WarnLevel:   {"W", BrightYellow},
	zapcore.ErrorLevel:  {"E", BrightRed},
	zapcore.DPanicLevel: {"P", Red},
	zapcore.PanicLevel:  {"P", Red},
	zapcore.FatalLevel:  {"F", Red},
}

// coloredConsoleEncoder creates a custom encoder with colors
func coloredConsoleEncoder(enableColors bool) zapcore.Encoder {
	config := zap.NewDevelopmentEncoderConfig()

	// HH:MM:SS only
	config.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		timeStr := t.Format("15:04:05")
		if enableColors {
			enc.AppendString(Dim + timeStr + Reset)
		} else {
			enc.AppendString(timeStr)
		}
	}

	// Single letter level: D, I, W, E
	config.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		style, ok := levelStyle[level]
		if !ok {
			style.letter, style.color = "?", White
		}
		if enableColors {
			enc.AppendString(style.color + Bold + style.letter + Reset)
		} else {
			enc.AppendString(style.letter)
		}
	}

	config.EncodeCaller = func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		file := caller.File
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}
		file = strings.TrimSuffix(file, ".go")
		if enableColors {
			enc.AppendString(Dim + file + Reset)
		} else {
			enc.AppendString(file)
		}
	}

	return zapcore.NewConsoleEncoder(config)
}

// NewLogger builds a logger from Options. It is the constructor the CLI uses.
func NewLogger(opts Options) (*ColoredLogger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		out = file
	}

	colors := opts.Color && opts.File == ""
	var encoder zapcore.Encoder
	switch opts.Format {
	case "", "console":
		encoder = coloredConsoleEncoder(colors)
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		colors = false
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	return newWithCore(zapcore.NewCore(encoder, zapcore.AddSync(out), level), colors), nil
}

// NewNop returns a logger that discards everything. Used by tests and by
// components constructed without a logger.
func NewNop() *ColoredLogger {
	return &ColoredLogger{Logger: zap.NewNop()}
}

// Wrap adapts an existing zap logger, e.g. one built with zaptest.
func Wrap(l *zap.Logger) *ColoredLogger {
	if l == nil {
		return NewNop()
	}
	return &ColoredLogger{Logger: l}
}

func newWithCore(core zapcore.Core, enableColors bool) *ColoredLogger {
	return &ColoredLogger{
		Logger:       zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		enableColors: enableColors,
	}
}

func (l *ColoredLogger) tag(component Component, msg string) string {
	if l.enableColors {
		return fmt.Sprintf("%s[%s]%s %s", getComponentColor(component), component, Reset, msg)
	}
	return fmt.Sprintf("[%s] %s", component, msg)
}

// Component-specific logging methods
func (l *ColoredLogger) ComponentInfo(component Component, msg string, fields ...zap.Field) {
	l.Info(l.tag(component, msg), fields...)
}

func (l *ColoredLogger) ComponentWarn(component Component, msg string, fields ...zap.Field) {
	l.Warn(l.tag(component, msg), fields...)
}

func (l *ColoredLogger) ComponentError(component Component, msg string, fields ...zap.Field) {
	l.Error(l.tag(component, msg), fields...)
}

func (l *ColoredLogger) ComponentDebug(component Component, msg string, fields ...zap.Field) {
	l.Debug(l.tag(component, msg), fields...)
}

// StandardLogger is an io.Writer that forwards each line to the component
// logger at warn level. Wrap it in log.New for http.Server.ErrorLog.
type StandardLogger struct {
	logger    *ColoredLogger
	component Component
}

// NewStandardLogger creates a line adapter for a component.
func NewStandardLogger(logger *ColoredLogger, component Component) *StandardLogger {
	return &StandardLogger{logger: logger, component: component}
}

// Write implements io.Writer so the adapter can back a *log.Logger.
func (s *StandardLogger) Write(p []byte) (int, error) {
	s.logger.ComponentWarn(s.component, strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
