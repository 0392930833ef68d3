// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package runs

import (
	"fmt"
	"sync"
	"time"

	"github.com/adreckon/adreckon/internal/models"
)

// LogBuffer is a fixed-capacity ring of log lines. Once full, every append
// evicts the oldest line.
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string
	start int
	count int
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &LogBuffer{lines: make([]string, capacity)}
}

// Append adds one line, evicting the oldest when full.
func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.start + b.count) % len(b.lines)
	b.lines[idx] = line
	if b.count < len(b.lines) {
		b.count++
	} else {
		b.start = (b.start + 1) % len(b.lines)
	}
}

// Tail returns the newest n lines, oldest first. n larger than the buffer
// returns everything.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.count == 0 {
		return []string{}
	}
	if n > b.count {
		n = b.count
	}

	out := make([]string, 0, n)
	first := b.count - n
	for i := first; i < b.count; i++ {
		out = append(out, b.lines[(b.start+i)%len(b.lines)])
	}
	return out
}

// Len returns the number of buffered lines.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// JobLogs holds one LogBuffer per job kind, backing the job log endpoint.
// Lines are timestamped at append time.
type JobLogs struct {
	capacity int

	mu      sync.Mutex
	buffers map[models.JobKind]*LogBuffer
}

func NewJobLogs(capacity int) *JobLogs {
	return &JobLogs{
		capacity: capacity,
		buffers:  make(map[models.JobKind]*LogBuffer),
	}
}

func (l *JobLogs) buffer(job models.JobKind) *LogBuffer {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buffers[job]
	if !ok {
		b = NewLogBuffer(l.capacity)
		l.buffers[job] = b
	}
	return b
}

// Logf appends one formatted, timestamped line to the job's buffer.
func (l *JobLogs) Logf(job models.JobKind, format string, args ...any) {
	line := time.Now().UTC().Format("2006-01-02 15:04:05") + " " + fmt.Sprintf(format, args...)
	l.buffer(job).Append(line)
}

// Tail returns the newest n lines for the job, oldest first.
func (l *JobLogs) Tail(job models.JobKind, n int) []string {
	return l.buffer(job).Tail(n)
}
