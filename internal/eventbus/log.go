package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// rotatingLog appends one JSON line per event to path, rotating to
// "<path>.N" (smallest unused positive integer) once the file exceeds
// maxBytes (§4.B, "Log rotation").
type rotatingLog struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File
	size     int64
}

func newRotatingLog(path string, maxBytes int64) (*rotatingLog, error) {
	if maxBytes <= 0 {
		maxBytes = 10 << 20 // 10MiB default cap
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventbus: open log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("eventbus: stat log %s: %w", path, err)
	}
	return &rotatingLog{path: path, maxBytes: maxBytes, file: f, size: info.Size()}, nil
}

func (l *rotatingLog) Append(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event: %w", err)
	}
	line = append(line, '\n')

	if l.size+int64(len(line)) > l.maxBytes && l.size > 0 {
		if err := l.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// rotateLocked renames the current log to the smallest "<path>.N" not
// already taken, then reopens a fresh file at the original path.
func (l *rotatingLog) rotateLocked() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("eventbus: close before rotate: %w", err)
	}

	n := 1
	for {
		candidate := fmt.Sprintf("%s.%d", l.path, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			if err := os.Rename(l.path, candidate); err != nil {
				return fmt.Errorf("eventbus: rotate rename: %w", err)
			}
			break
		}
		n++
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("eventbus: reopen after rotate: %w", err)
	}
	l.file = f
	l.size = 0
	return nil
}

func (l *rotatingLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
