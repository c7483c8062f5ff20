package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/portalis/engine/core"
)

func TestResultError(t *testing.T) {
	tests := []struct {
		name    string
		result  vk.Result
		want    error
		unknown bool
		fatal   bool
	}{
		{"device lost", vk.ErrorDeviceLost, core.ErrDeviceLost, false, true},
		{"out of date", vk.ErrorOutOfDate, core.ErrSwapchainOutOfDate, false, false},
		{"timeout", vk.Timeout, core.ErrTimeout, false, true},
		{"out of memory", vk.ErrorOutOfDeviceMemory, core.ErrGPU, false, true},
		{"unknown", vk.ErrorUnknown, core.ErrGPU, true, true},
		{"unnamed", vk.Result(-424242), core.ErrGPU, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resultError(tt.result, "vkTest")
			if !errors.Is(err, tt.want) {
				t.Errorf("resultError() = %v, want %v", err, tt.want)
			}
			if got := errors.Is(err, core.ErrUnknown); got != tt.unknown {
				t.Errorf("errors.Is(ErrUnknown) = %v, want %v", got, tt.unknown)
			}
			if got := core.IsFatal(err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}
