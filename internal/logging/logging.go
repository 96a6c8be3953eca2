// Package logging provides the bot's structured logger: leveled zap cores
// (stderr for warn and above, stdout for the rest, optional rotating JSON
// file), a token-bucket rate limiter that suppresses excess volume and
// reports what it dropped, a bounded tail buffer, and an optional mirror
// hook for forwarding lines to an external sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gatewarden/internal/metrics"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceLevel sits below zap's debug level.
const TraceLevel = zapcore.Level(-2)

const ringCapacity = 500

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Config struct {
	Level    string
	Burst    int
	Interval time.Duration
	File     FileConfig

	// Stdout and Stderr override the process streams, for tests.
	Stdout io.Writer
	Stderr io.Writer
}

type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// tokenBucket refills fully every interval, lazily on the next call past an
// interval boundary. A burst of zero disables limiting.
type tokenBucket struct {
	burst      int
	interval   time.Duration
	tokens     int
	lastRefill time.Time
	suppressed int
}

// take reports whether the call is admitted, whether it is the first
// suppression of an episode, and how many calls a just-completed episode
// suppressed.
func (b *tokenBucket) take(now time.Time) (allowed, firstHit bool, flushed int) {
	if b.burst <= 0 || b.interval <= 0 {
		return true, false, 0
	}
	if b.lastRefill.IsZero() {
		b.lastRefill = now
		b.tokens = b.burst
	}
	if now.Sub(b.lastRefill) >= b.interval {
		flushed = b.suppressed
		b.suppressed = 0
		b.tokens = b.burst
		b.lastRefill = now
	}
	if b.tokens > 0 {
		b.tokens--
		return true, false, flushed
	}
	b.suppressed++
	return false, b.suppressed == 1, flushed
}

type Logger struct {
	mu     sync.Mutex
	z      *zap.Logger
	bucket tokenBucket
	clock  Clock

	ring *ring

	mirrorLevel zap.AtomicLevel
	mirror      func(string) error
}

func New(cfg Config) (*Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    encodeLevel,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	consoleEnc := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.AddSync(stdout), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l < zapcore.WarnLevel
		})),
		zapcore.NewCore(consoleEnc, zapcore.AddSync(stderr), zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.WarnLevel
		})),
	}
	if cfg.File.Enabled {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zap.LevelEnablerFunc(func(zapcore.Level) bool {
			return true
		})))
	}

	return &Logger{
		z:           zap.New(zapcore.NewTee(cores...)),
		bucket:      tokenBucket{burst: cfg.Burst, interval: cfg.Interval},
		clock:       systemClock{},
		ring:        newRing(ringCapacity),
		mirrorLevel: zap.NewAtomicLevelAt(lvl),
	}, nil
}

// NewNop discards all output; for tests of other packages.
func NewNop() *Logger {
	return &Logger{
		z:           zap.NewNop(),
		clock:       systemClock{},
		ring:        newRing(ringCapacity),
		mirrorLevel: zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
}

// WithClock swaps the time source; the rate limiter re-anchors on the next
// call.
func (l *Logger) WithClock(c Clock) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = c
	l.bucket.lastRefill = time.Time{}
	return l
}

func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// SetLevel adjusts the severity gate for the mirror hook. Console, file and
// the tail buffer keep recording every admitted call regardless.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.mirrorLevel.SetLevel(lvl)
	return nil
}

// SetMirror installs a hook receiving each formatted line that passes the
// level gate. Hook failures are swallowed.
func (l *Logger) SetMirror(fn func(string) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = fn
}

// SetRateLimit reconfigures the bucket to burst calls per interval and
// resets any in-progress suppression episode. A burst of zero disables
// limiting.
func (l *Logger) SetRateLimit(burst int, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bucket = tokenBucket{burst: burst, interval: interval}
}

// Tail returns up to n most recent admitted lines, oldest first.
func (l *Logger) Tail(n int) []string {
	return l.ring.tail(n)
}

func (l *Logger) Error(msg string, fields ...zap.Field) { l.log(zapcore.ErrorLevel, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.log(zapcore.WarnLevel, msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.log(zapcore.InfoLevel, msg, fields...) }
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.log(zapcore.DebugLevel, msg, fields...) }
func (l *Logger) Trace(msg string, fields ...zap.Field) { l.log(TraceLevel, msg, fields...) }

// Fatal bypasses the rate limiter and terminates the process.
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.z.Fatal(msg, fields...)
}

func (l *Logger) Sync() error {
	return l.z.Sync()
}

type emission struct {
	lvl  zapcore.Level
	line string
}

func (l *Logger) log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	l.mu.Lock()
	now := l.clock.Now()
	allowed, firstHit, flushed := l.bucket.take(now)

	var out []emission
	if flushed > 0 {
		out = append(out, l.emit(now, zapcore.WarnLevel, "rate_limit.flush", zap.Int("suppressed", flushed)))
	}
	if allowed {
		out = append(out, l.emit(now, lvl, msg, fields...))
	} else {
		metrics.LogLinesSuppressed.Inc()
		if firstHit {
			out = append(out, l.emit(now, zapcore.WarnLevel, "rate_limit.hit",
				zap.Int("burst", l.bucket.burst),
				zap.Duration("interval", l.bucket.interval),
				zap.Int("suppressed", l.bucket.suppressed)))
		}
	}
	mirror := l.mirror
	l.mu.Unlock()

	if mirror == nil {
		return
	}
	for _, e := range out {
		if !l.mirrorLevel.Enabled(e.lvl) {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			_ = mirror(e.line)
		}()
	}
}

// emit writes one admitted line to the zap tee and the tail buffer. Caller
// holds l.mu.
func (l *Logger) emit(now time.Time, lvl zapcore.Level, msg string, fields ...zap.Field) emission {
	l.z.Log(lvl, msg, fields...)
	line := formatLine(now, lvl, msg, fields)
	l.ring.append(line)
	return emission{lvl: lvl, line: line}
}

func formatLine(ts time.Time, lvl zapcore.Level, msg string, fields []zap.Field) string {
	var b strings.Builder
	b.WriteString(ts.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte(' ')
	b.WriteString(levelName(lvl))
	b.WriteByte(' ')
	b.WriteString(msg)
	if len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			f.AddTo(enc)
		}
		keys := make([]string, 0, len(enc.Fields))
		for k := range enc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
		}
	}
	return b.String()
}

func levelName(lvl zapcore.Level) string {
	if lvl == TraceLevel {
		return "TRACE"
	}
	return strings.ToUpper(lvl.String())
}

func encodeLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if lvl == TraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(lvl, enc)
}
