package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type mockRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errors  map[string]error
	calls   []string
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		outputs: make(map[string]string),
		errors:  make(map[string]error),
	}
}

func (r *mockRunner) Run(ctx context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")

	r.mu.Lock()
	r.calls = append(r.calls, key)
	r.mu.Unlock()

	out, ok := r.outputs[key]
	if !ok {
		return "", fmt.Errorf("unexpected command %q", key)
	}
	return out, r.errors[key]
}

func (r *mockRunner) Register(args []string, output string, err error) {
	key := strings.Join(args, " ")
	r.outputs[key] = output
	r.errors[key] = err
}
