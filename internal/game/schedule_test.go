package game

import (
	"testing"
	"time"
)

func TestManualSchedulerOrder(t *testing.T) {
	s := NewManualScheduler()
	var got []string

	s.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	s.AfterFunc(1*time.Second, func() { got = append(got, "a") })
	s.AfterFunc(2*time.Second, func() { got = append(got, "c") })

	s.Advance(1500 * time.Millisecond)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("after 1.5s fired %v, want [a]", got)
	}

	s.Advance(500 * time.Millisecond)
	if len(got) != 3 || got[1] != "b" || got[2] != "c" {
		t.Errorf("after 2s fired %v, want [a b c]", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}
}

func TestManualSchedulerStop(t *testing.T) {
	s := NewManualScheduler()
	fired := false
	tm := s.AfterFunc(time.Second, func() { fired = true })

	if !tm.Stop() {
		t.Error("Stop() on pending task = false, want true")
	}
	if tm.Stop() {
		t.Error("second Stop() = true, want false")
	}
	s.Advance(time.Minute)
	if fired {
		t.Error("stopped task fired")
	}
}

func TestManualSchedulerNestedScheduling(t *testing.T) {
	s := NewManualScheduler()
	count := 0
	s.AfterFunc(time.Second, func() {
		count++
		s.AfterFunc(time.Second, func() { count++ })
	})

	s.Advance(3 * time.Second)
	if count != 2 {
		t.Errorf("count = %d, want 2 (nested task due inside the window)", count)
	}
}
