package pipeline

import (
	"context"
	"fmt"
	"testing"
)

func TestRunner_AllSucceed(t *testing.T) {
	exec := newStubExecutor()
	r := NewRunner(exec, nil)

	if !r.Run(context.Background(), stages("a", "b", "c")) {
		t.Fatal("expected success")
	}

	want := []string{"a", "b", "c"}
	if fmt.Sprint(exec.order) != fmt.Sprint(want) {
		t.Errorf("execution order = %v, want %v", exec.order, want)
	}
}

func TestRunner_EmptyStages(t *testing.T) {
	r := NewRunner(newStubExecutor(), nil)

	if !r.Run(context.Background(), nil) {
		t.Fatal("empty stage list should succeed")
	}
}

func TestRunner_FailFast(t *testing.T) {
	names := []string{"s1", "s2", "s3", "s4", "s5"}

	// Для каждого k: если упал stage k, stages k+1..N не вызываются
	for k := range names {
		t.Run(names[k], func(t *testing.T) {
			exec := newStubExecutor()
			exec.fail[names[k]] = true

			ok, failed := NewRunner(exec, nil).RunDetailed(context.Background(), stages(names...))
			if ok {
				t.Fatal("expected failure")
			}
			if failed != names[k] {
				t.Errorf("failed stage = %q, want %q", failed, names[k])
			}

			for i, n := range names {
				want := 0
				if i <= k {
					want = 1
				}
				if got := exec.count(n); got != want {
					t.Errorf("stage %s called %d times, want %d", n, got, want)
				}
			}
		})
	}
}
