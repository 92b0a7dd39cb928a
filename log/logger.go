package log

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"
)

type Logger interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

var DefaultLogger *log.Logger
var defaultFilter *logFilter

type Level string

const (
	LDebug    = Level("debug")
	LProgress = Level("progress")
	LStep     = Level("step")
	LInfo     = Level("info")
	LWarn     = Level("warn")
	LError    = Level("error")
	LFatal    = Level("fatal")
)

var levels = []Level{LDebug, LProgress, LStep, LInfo, LWarn, LError, LFatal}

func init() {
	defaultFilter = &logFilter{
		start:    time.Now(),
		writer:   os.Stderr,
		levels:   levels,
		minLevel: LWarn,
	}
	defaultFilter.init()
	DefaultLogger = log.New(defaultFilter, "", 0)
}

type logFilter struct {
	mu        sync.Mutex
	start     time.Time
	writer    io.Writer
	badLevels map[Level]struct{}
	minLevel  Level
	levels    []Level
	noPrefix  bool
}

func (f *logFilter) SetMinLevel(lvl Level) {
	f.mu.Lock()
	f.minLevel = lvl
	f.init()
	f.mu.Unlock()
}

func (f *logFilter) init() {
	badLevels := make(map[Level]struct{})
	for _, level := range f.levels {
		if level == f.minLevel {
			break
		}
		badLevels[level] = struct{}{}
	}
	f.badLevels = badLevels
}

// lineLevel returns the level of a log line, lines without
// a [level] prefix are returned as LInfo.
func lineLevel(line []byte) Level {
	if len(line) == 0 || line[0] != '[' {
		return LInfo
	}
	y := bytes.IndexByte(line, ']')
	if y < 0 {
		return LInfo
	}
	return Level(line[1:y])
}

func (f *logFilter) Check(line []byte) bool {
	_, ok := f.badLevels[lineLevel(line)]
	return !ok
}

func (f *logFilter) Write(p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Check(p) {
		return len(p), nil
	}
	if f.noPrefix {
		return f.writer.Write(p)
	}
	// The Go log package always guarantees that we only
	// get a single line.
	b := bytes.Buffer{}
	now := time.Now()

	d := now.Sub(f.start)
	fmt.Fprintf(&b, "[%s] %d:%02d:%02d ",
		now.Format(time.RFC3339),
		int(d.Hours()),
		int(math.Mod(d.Minutes(), 60)),
		int(math.Mod(d.Seconds(), 60)),
	)
	b.Write(p)

	return f.writer.Write(b.Bytes())
}

func SetMinLevel(lvl Level) {
	defaultFilter.SetMinLevel(lvl)
}

// SetOutput replaces stderr as the log destination.
func SetOutput(w io.Writer) {
	defaultFilter.mu.Lock()
	defaultFilter.writer = w
	defaultFilter.mu.Unlock()
}

// SetTimestamps enables or disables the time prefix of each line.
func SetTimestamps(enabled bool) {
	defaultFilter.mu.Lock()
	defaultFilter.noPrefix = !enabled
	defaultFilter.mu.Unlock()
}

func Println(v ...interface{}) {
	DefaultLogger.Println(v...)
}

func Printf(format string, v ...interface{}) {
	DefaultLogger.Printf(format, v...)
}

func Step(name string) func() {
	start := time.Now()
	Println("[step] Starting:", name)
	return func() {
		Printf("[step] Finished: %s in %s", name, time.Since(start))
	}
}
