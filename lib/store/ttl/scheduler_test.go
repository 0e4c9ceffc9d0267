package ttl

import "testing"

func TestSchedulerPopDueOnlyReturnsExpired(t *testing.T) {
	s := NewScheduler()
	s.Schedule("a", 1, "node1", 0, 0, 100) // deadline = 100
	s.Schedule("b", 1, "node1", 0, 0, 500) // deadline = 500

	due := s.PopDue(200)
	if len(due) != 1 || due[0].Key != "a" {
		t.Fatalf("PopDue(200) = %v, want only key a", due)
	}

	next, ok := s.NextDeadlineMs()
	if !ok || next != 500 {
		t.Errorf("NextDeadlineMs() = (%d, %v), want (500, true)", next, ok)
	}
}

func TestSchedulerPopDueDrainsAllExpired(t *testing.T) {
	s := NewScheduler()
	s.Schedule("a", 1, "node1", 0, 0, 100)
	s.Schedule("b", 1, "node1", 0, 0, 150)
	s.Schedule("c", 1, "node1", 0, 0, 900)

	due := s.PopDue(200)
	if len(due) != 2 {
		t.Fatalf("PopDue(200) returned %d entries, want 2", len(due))
	}

	if _, ok := s.NextDeadlineMs(); !ok {
		t.Fatal("expected entry c to remain scheduled")
	}
}

func TestShouldRefresh(t *testing.T) {
	tests := []struct {
		name            string
		remaining, full int64
		want            bool
	}{
		{"well above threshold", 900, 1000, false},
		{"just below threshold", 240, 1000, true},
		{"zero full ttl never refreshes", 10, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRefresh(tt.remaining, tt.full); got != tt.want {
				t.Errorf("ShouldRefresh(%d, %d) = %v, want %v", tt.remaining, tt.full, got, tt.want)
			}
		})
	}
}
