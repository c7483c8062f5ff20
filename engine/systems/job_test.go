package systems

import (
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

func TestNewJobSystemValidates(t *testing.T) {
	tests := []struct {
		name             string
		workers, channel int
		want             error
	}{
		{"no workers", 0, 4, ErrNoWorkers},
		{"negative channel", 2, -1, ErrNegativeChannelSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewJobSystem(tt.workers, tt.channel); !errors.Is(err, tt.want) {
				t.Errorf("NewJobSystem() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJobCallbacksRunOnUpdate(t *testing.T) {
	js, err := NewJobSystem(3, 16)
	if err != nil {
		t.Fatal(err)
	}

	var ran atomic.Int32
	var sum, failures int
	for i := 1; i <= 10; i++ {
		i := i
		err := js.Submit(metadata.JobInfo{
			ParamData: i,
			EntryPoint: func(params interface{}) (interface{}, error) {
				ran.Add(1)
				if params.(int) == 7 {
					return nil, errors.New("seven")
				}
				return params.(int) * 2, nil
			},
			OnSuccess: func(result interface{}) { sum += result.(int) },
			OnFail:    func(err error) { failures++ },
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if ran.Load() != 10 {
		t.Fatalf("ran %d jobs, want 10", ran.Load())
	}
	// Nothing is delivered before Update.
	if sum != 0 || failures != 0 {
		t.Fatalf("callbacks ran before Update")
	}
	js.Update()
	if want := 2 * (55 - 7); sum != want {
		t.Errorf("sum = %d, want %d", sum, want)
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
}

func TestSubmitRequiresEntryPoint(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()
	if err := js.Submit(metadata.JobInfo{}); err == nil {
		t.Error("Submit() without entry point succeeded")
	}
}
