package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// successRates are the per-method simulated success probabilities a
// step completes without error.
var successRates = map[model.ActionMethod]float64{
	model.MethodNETCONF: 0.90,
	model.MethodCLI:     0.95,
	model.MethodRESTAPI: 0.92,
	model.MethodSNMP:    0.85,
}

// Simulated is the default Executor: it does not touch real devices,
// only sleeps for a token duration and rolls per-method success odds.
// Registered as "simulated".
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a Simulated executor. seed=0 derives a seed
// from the current time; a non-zero seed gives reproducible runs
// (useful for tests).
func NewSimulated(seed int64) *Simulated {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulated{rng: rand.New(rand.NewSource(seed))}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Run(ctx context.Context, device string, method model.ActionMethod, step model.ActionStep) (StepResult, error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	select {
	case <-ctx.Done():
		return StepResult{}, ctx.Err()
	case <-time.After(timeout / 10):
	}

	rate, ok := successRates[method]
	if !ok {
		rate = 0.9
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if roll > rate {
		return StepResult{
			Success: false,
			Output:  fmt.Sprintf("simulated %s step %q on %s failed", method, step.Description, device),
			Err:     fmt.Errorf("executor: simulated failure for method %s", method),
		}, nil
	}

	return StepResult{
		Success: true,
		Output:  fmt.Sprintf("simulated %s step %q on %s: %s", method, step.Description, device, step.ExpectedResult),
	}, nil
}
