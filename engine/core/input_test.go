package core

import "testing"

func TestInputKeyTransitions(t *testing.T) {
	s := NewInputState(nil)
	s.ProcessKey(KEY_W, true)
	if !s.KeyPressed(KEY_W) {
		t.Error("KeyPressed(W) = false on the frame it went down")
	}
	s.Update()
	if s.KeyPressed(KEY_W) {
		t.Error("KeyPressed(W) = true on the frame after")
	}
	if !s.IsKeyDown(KEY_W) || !s.WasKeyDown(KEY_W) {
		t.Error("held key is not down in both states")
	}
	s.ProcessKey(KEY_W, false)
	if !s.IsKeyUp(KEY_W) {
		t.Error("IsKeyUp(W) = false after release")
	}
	// Out of range codes are ignored.
	s.ProcessKey(KEYS_MAX_KEYS+1, true)
	if s.IsKeyDown(KEYS_MAX_KEYS + 1) {
		t.Error("out of range key reported down")
	}
}

func TestInputMouseDeltaAndScroll(t *testing.T) {
	s := NewInputState(nil)
	s.ProcessMouseMove(10, 20)
	s.Update()
	s.ProcessMouseMove(15, 18)
	s.ProcessMouseWheel(1)
	s.ProcessMouseWheel(0.5)

	dx, dy := s.MouseDelta()
	if dx != 5 || dy != -2 {
		t.Errorf("MouseDelta() = (%v, %v), want (5, -2)", dx, dy)
	}
	if got := s.Scroll(); got != 1.5 {
		t.Errorf("Scroll() = %v, want 1.5", got)
	}
	s.Update()
	if got := s.Scroll(); got != 0 {
		t.Errorf("Scroll() after Update = %v, want 0", got)
	}
}

func TestInputFiresEvents(t *testing.T) {
	bus := NewEventBus()
	var got []SystemEventCode
	listener := &struct{}{}
	record := func(code SystemEventCode, sender interface{}, l interface{}, data EventContext) bool {
		got = append(got, code)
		return false
	}
	for _, code := range []SystemEventCode{EVENT_CODE_KEY_PRESSED, EVENT_CODE_BUTTON_PRESSED, EVENT_CODE_BUTTON_RELEASED} {
		bus.Register(code, listener, record)
	}

	s := NewInputState(bus)
	s.ProcessKey(KEY_ESCAPE, true)
	s.ProcessKey(KEY_ESCAPE, true) // unchanged, no event
	s.ProcessButton(BUTTON_LEFT, true)
	s.ProcessButton(BUTTON_LEFT, false)

	want := []SystemEventCode{EVENT_CODE_KEY_PRESSED, EVENT_CODE_BUTTON_PRESSED, EVENT_CODE_BUTTON_RELEASED}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %d, want %d", i, got[i], want[i])
		}
	}
}
