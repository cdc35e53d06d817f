package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelWarningAliasConstant         = "warning"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatJSONAliasConstant           = "json"
	logFormatConsoleStringConstant       = "console"
	structuredTimeKeyConstant            = "time"
	consoleTimeLayoutConstant            = "15:04:05"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

var logLevelMapping = map[string]zapcore.Level{
	logLevelDebugStringConstant:  zapcore.DebugLevel,
	logLevelInfoStringConstant:   zapcore.InfoLevel,
	logLevelWarnStringConstant:   zapcore.WarnLevel,
	logLevelWarningAliasConstant: zapcore.WarnLevel,
	logLevelErrorStringConstant:  zapcore.ErrorLevel,
}

var logFormatMapping = map[string]LogFormat{
	logFormatStructuredStringConstant: LogFormatStructured,
	logFormatJSONAliasConstant:        LogFormatStructured,
	logFormatConsoleStringConstant:    LogFormatConsole,
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct {
	output io.Writer
}

// NewLoggerFactory constructs a factory whose loggers write to standard error, keeping standard
// output free for report tables.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// NewLoggerFactoryWithOutput constructs a factory whose loggers write to output.
func NewLoggerFactoryWithOutput(output io.Writer) *LoggerFactory {
	return &LoggerFactory{output: output}
}

// CreateLogger produces a zap.Logger for the requested level and format. Names are matched without
// regard to case; "warning" and "json" are accepted as aliases.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[normalizeLoggerSetting(string(requestedLogLevel))]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	logFormat, formatExists := logFormatMapping[normalizeLoggerSetting(string(requestedLogFormat))]
	if !formatExists {
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	core := zapcore.NewCore(newEncoder(logFormat), factory.writeSyncer(), zap.NewAtomicLevelAt(zapLogLevel))
	options := []zap.Option{zap.ErrorOutput(factory.writeSyncer())}
	if logFormat == LogFormatStructured {
		options = append(options, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(core, options...), nil
}

func (factory *LoggerFactory) writeSyncer() zapcore.WriteSyncer {
	if factory == nil || factory.output == nil {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(factory.output)
}

// newEncoder returns JSON with ISO-8601 timestamps for structured logs and a compact colored line
// for console logs.
func newEncoder(logFormat LogFormat) zapcore.Encoder {
	if logFormat == LogFormatConsole {
		encoderConfiguration := zap.NewDevelopmentEncoderConfig()
		encoderConfiguration.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant)
		encoderConfiguration.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfiguration.CallerKey = zapcore.OmitKey
		encoderConfiguration.NameKey = zapcore.OmitKey
		return zapcore.NewConsoleEncoder(encoderConfiguration)
	}

	encoderConfiguration := zap.NewProductionEncoderConfig()
	encoderConfiguration.TimeKey = structuredTimeKeyConstant
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(encoderConfiguration)
}

func normalizeLoggerSetting(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
