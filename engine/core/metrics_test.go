package core

import "testing"

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); got < 9.999 || got > 10.001 {
		t.Errorf("FrameTime() = %f, want 10ms", got)
	}
	// A second window must not accumulate on top of the first.
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.020)
	}
	if got := m.FrameTime(); got < 19.999 || got > 20.001 {
		t.Errorf("FrameTime() = %f, want 20ms", got)
	}
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	// 125ms frames: the ninth update crosses one second.
	for i := 0; i < 9; i++ {
		m.Update(0.125)
	}
	if got := m.FPS(); got != 8 {
		t.Errorf("FPS() = %f, want 8", got)
	}
}
