package executor

import (
	"context"
	"testing"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

func TestRegistry_DefaultSimulatedIsRegistered(t *testing.T) {
	e, err := Get("simulated")
	if err != nil {
		t.Fatalf("expected simulated executor registered by default: %v", err)
	}
	if e.Name() != "simulated" {
		t.Errorf("expected Name()=simulated, got %q", e.Name())
	}
}

func TestRegister_PanicsOnDuplicateName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register(NewSimulated(1))
}

func TestSimulated_DeterministicWithFixedSeed(t *testing.T) {
	a := NewSimulated(42)
	b := NewSimulated(42)
	step := model.ActionStep{Description: "test", Timeout: 10 * time.Millisecond, ExpectedResult: "ok"}

	ra, _ := a.Run(context.Background(), "r1", model.MethodCLI, step)
	rb, _ := b.Run(context.Background(), "r1", model.MethodCLI, step)

	if ra.Success != rb.Success {
		t.Errorf("expected deterministic outcome for fixed seed, got %v vs %v", ra.Success, rb.Success)
	}
}

func TestSimulated_RespectsContextCancellation(t *testing.T) {
	s := NewSimulated(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, "r1", model.MethodCLI, model.ActionStep{Timeout: time.Second})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
