// Package executor defines the pluggable device-access interface the
// remediation engine runs action steps through, plus the default
// simulated executor (spec §1: "concrete device-access transports
// (NETCONF/SSH/REST)... are simulated behind a pluggable executor
// interface").
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/sanketsnayak/netheal/internal/model"
)

// StepResult is the outcome of running a single ActionStep.
type StepResult struct {
	Success bool
	Output  string
	Err     error
}

// Executor runs one ActionStep against a device over a specific
// method. Implementations must be goroutine-safe; Run may block for
// up to the step's timeout (simulated or real device I/O).
type Executor interface {
	// Name is the unique, config-selectable identifier for this executor.
	Name() string
	// Run executes step against device using method, returning the
	// outcome. Must respect ctx cancellation.
	Run(ctx context.Context, device string, method model.ActionMethod, step model.ActionStep) (StepResult, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Executor)
)

// Register adds e to the registry. Panics if its Name() is already
// registered, matching the contrib plugin-registration contract this
// package is modeled on.
func Register(e Executor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[e.Name()]; exists {
		panic(fmt.Sprintf("executor: %q already registered", e.Name()))
	}
	registry[e.Name()] = e
}

// Get returns the registered executor with the given name.
func Get(name string) (Executor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("executor: %q not registered (available: %v)", name, names())
	}
	return e, nil
}

// List returns the names of all registered executors.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return names()
}

func names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

func init() {
	Register(NewSimulated(0))
}
