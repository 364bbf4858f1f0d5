package slogutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// logFile appends to a log file and, when limit is positive, moves it aside
// once it would grow past limit bytes. Older generations are kept as
// path.1 (newest) up to path.<keep>.
type logFile struct {
	mu    sync.Mutex
	path  string
	limit int64
	keep  int
	f     *os.File
	size  int64
}

// OpenLogFile opens path for appending. maxSize ("10MB", "512KB", "" for no
// limit) bounds the file; maxBackups old generations are kept.
func OpenLogFile(path, maxSize string, maxBackups int) (io.WriteCloser, error) {
	limit, err := ParseSize(maxSize)
	if err != nil {
		return nil, err
	}
	lf := &logFile{path: path, limit: limit, keep: max(maxBackups, 0)}
	if err := lf.open(); err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return lf, nil
}

func (l *logFile) open() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.size = f, info.Size()
	return nil
}

func (l *logFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit > 0 && l.size > 0 && l.size+int64(len(p)) > l.limit {
		if err := l.shift(); err != nil {
			return 0, err
		}
	}
	n, err := l.f.Write(p)
	l.size += int64(n)
	return n, err
}

func (l *logFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// shift closes the current file, renames every generation one step older,
// drops the oldest and reopens an empty file.
func (l *logFile) shift() error {
	if err := l.f.Close(); err != nil {
		return err
	}
	generation := func(n int) string { return l.path + "." + strconv.Itoa(n) }

	if l.keep == 0 {
		_ = os.Remove(l.path)
	} else {
		_ = os.Remove(generation(l.keep))
		for n := l.keep - 1; n >= 1; n-- {
			_ = os.Rename(generation(n), generation(n+1))
		}
		_ = os.Rename(l.path, generation(1))
	}
	return l.open()
}

var sizeUnits = []struct {
	suffix string
	bytes  float64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize parses sizes like "10MB", "1.5GB", "512kb" or "2048". An empty
// string means no limit and parses to 0.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	multiplier := 1.0
	for _, u := range sizeUnits {
		if rest, ok := strings.CutSuffix(s, u.suffix); ok {
			s, multiplier = strings.TrimSpace(rest), u.bytes
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid size %q: use a number with an optional B, KB, MB or GB suffix", s)
	}
	return int64(v * multiplier), nil
}
