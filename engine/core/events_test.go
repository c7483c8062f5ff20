package core

import "testing"

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	first, second := &struct{ n int }{}, &struct{ n int }{}

	handled := func(code SystemEventCode, sender interface{}, l interface{}, data EventContext) bool {
		l.(*struct{ n int }).n++
		return true
	}
	if !bus.Register(EVENT_CODE_RESIZED, first, handled) {
		t.Fatal("Register() = false")
	}
	if bus.Register(EVENT_CODE_RESIZED, first, handled) {
		t.Error("duplicate Register() = true")
	}
	bus.Register(EVENT_CODE_RESIZED, second, handled)

	var ctx EventContext
	ctx.Data.U32[0], ctx.Data.U32[1] = 800, 600
	if !bus.Fire(EVENT_CODE_RESIZED, nil, ctx) {
		t.Error("Fire() = false, want handled")
	}
	// The first listener handles the event, the second never sees it.
	if first.n != 1 || second.n != 0 {
		t.Errorf("calls = (%d, %d), want (1, 0)", first.n, second.n)
	}

	if !bus.Unregister(EVENT_CODE_RESIZED, first) {
		t.Error("Unregister() = false")
	}
	bus.Fire(EVENT_CODE_RESIZED, nil, ctx)
	if first.n != 1 || second.n != 1 {
		t.Errorf("calls after unregister = (%d, %d), want (1, 1)", first.n, second.n)
	}
	if bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}) {
		t.Error("Fire() without listeners reported handled")
	}
}
