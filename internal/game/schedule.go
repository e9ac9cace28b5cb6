package game

import (
	"sync"
	"time"
)

// Timer is a pending delayed callback. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d on the host's execution context.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// WallClock schedules callbacks with time.AfterFunc.
var WallClock Scheduler = wallClock{}

// ManualScheduler is a Scheduler driven by Advance instead of real time.
// Callbacks run synchronously on the goroutine calling Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	s   *ManualScheduler
	due time.Duration
	seq uint64
	f   func()
}

// NewManualScheduler returns a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc queues f to run once the clock has advanced by d.
func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{s: m, due: m.now + d, seq: m.seq, f: f}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward by d, firing due callbacks in order.
// Callbacks scheduled while advancing fire too if they fall due in the window.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := -1
		for i, t := range m.tasks {
			if t.due > target {
				continue
			}
			if next < 0 || t.due < m.tasks[next].due ||
				(t.due == m.tasks[next].due && t.seq < m.tasks[next].seq) {
				next = i
			}
		}
		if next < 0 {
			m.now = target
			m.mu.Unlock()
			return
		}
		t := m.tasks[next]
		m.tasks = append(m.tasks[:next], m.tasks[next+1:]...)
		m.now = t.due
		m.mu.Unlock()

		t.f()
	}
}

// Pending reports how many callbacks are still queued.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Stop removes the task; it reports false if the task already ran or was stopped.
func (t *manualTask) Stop() bool {
	m := t.s
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.tasks {
		if x == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return true
		}
	}
	return false
}
