package game

import "testing"

func TestScheduler_RunsDueTasksInOrder(t *testing.T) {
	var gen uint64
	s := NewScheduler(func() uint64 { return gen })

	var order []string
	s.Schedule(1.0, func() { order = append(order, "b") })
	s.Schedule(0.5, func() { order = append(order, "a") })
	s.Schedule(2.0, func() { order = append(order, "c") })

	if ran := s.Advance(0.6); ran != 1 || len(order) != 1 || order[0] != "a" {
		t.Fatalf("after 0.6s: ran=%d order=%v", ran, order)
	}
	if ran := s.Advance(1.0); ran != 1 || order[1] != "b" {
		t.Fatalf("after 1.6s: ran=%d order=%v", ran, order)
	}
	if s.Pending() != 1 {
		t.Errorf("pending = %d, want 1", s.Pending())
	}
	s.Advance(1.0)
	if len(order) != 3 || order[2] != "c" {
		t.Errorf("order = %v", order)
	}
}

func TestScheduler_StaleTasksAreDropped(t *testing.T) {
	var gen uint64 = 1
	s := NewScheduler(func() uint64 { return gen })

	ran := false
	s.Schedule(1, func() { ran = true })
	gen++ // 状态已被更新的转换取代

	if n := s.Advance(2); n != 0 || ran {
		t.Error("stale task should not run")
	}
	if s.Pending() != 0 {
		t.Error("stale task should be removed once due")
	}
}

func TestScheduler_TaskBumpingGenerationSkipsSiblings(t *testing.T) {
	var gen uint64
	s := NewScheduler(func() uint64 { return gen })

	second := false
	s.Schedule(1, func() { gen++ })
	s.Schedule(1, func() { second = true })

	s.Advance(1)
	if second {
		t.Error("task scheduled before the generation change should be skipped")
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler(func() uint64 { return 0 })
	ran := 0
	id := s.Schedule(1, func() { ran++ })
	s.Schedule(1, func() { ran++ })
	s.Cancel(id)
	s.Cancel(999)
	s.Advance(1)
	if ran != 1 {
		t.Errorf("ran = %d, want 1", ran)
	}

	s.Schedule(1, func() { ran++ })
	s.CancelAll()
	s.Advance(5)
	if ran != 1 || s.Pending() != 0 {
		t.Errorf("CancelAll did not clear tasks: ran=%d pending=%d", ran, s.Pending())
	}
}
