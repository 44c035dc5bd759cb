package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/stage"
)

// stubExecutor — инструментированный executor: считает вызовы по stage
// и может создавать файлы, имитируя результат работы stage.
type stubExecutor struct {
	mu     sync.Mutex
	fail   map[string]bool
	panics map[string]bool
	writes map[string][]string
	calls  map[string]int
	order  []string
	argv   map[string][]string
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		fail:   make(map[string]bool),
		panics: make(map[string]bool),
		writes: make(map[string][]string),
		calls:  make(map[string]int),
		argv:   make(map[string][]string),
	}
}

func (s *stubExecutor) Execute(_ context.Context, st domain.Stage) stage.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[st.Name]++
	s.order = append(s.order, st.Name)
	s.argv[st.Name] = st.Command

	if s.panics[st.Name] {
		panic("stage " + st.Name + " exploded")
	}
	if s.fail[st.Name] {
		return stage.Result{ExitCode: 1, Stderr: "boom"}
	}

	for _, path := range s.writes[st.Name] {
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			return stage.Result{ExitCode: -1, Err: err}
		}
	}

	return stage.Result{Succeeded: true}
}

func (s *stubExecutor) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func stages(names ...string) []domain.Stage {
	out := make([]domain.Stage, len(names))
	for i, n := range names {
		out[i] = domain.Stage{Name: n, Command: []string{n}}
	}
	return out
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// filesWithExt возвращает файлы верхнего уровня dir с указанными расширениями.
func filesWithExt(t *testing.T, dir string, exts ...string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}

	var found []string
	for _, e := range entries {
		for _, ext := range exts {
			if filepath.Ext(e.Name()) == ext {
				found = append(found, e.Name())
			}
		}
	}
	return found
}
