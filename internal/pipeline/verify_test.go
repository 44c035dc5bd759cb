package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestVerifier_AllPresent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	touch(t, a)

	v := NewVerifier(nil)
	waits := 0
	v.wait = func(context.Context, time.Duration) error { waits++; return nil }

	if !v.Verify(context.Background(), []string{a}, DefaultVerifyPolicy()) {
		t.Fatal("expected true")
	}
	if waits != 0 {
		t.Errorf("expected no waits, got %d", waits)
	}
}

func TestVerifier_AppearsBetweenAttempts(t *testing.T) {
	dir := t.TempDir()
	late := filepath.Join(dir, "late.csv")

	v := NewVerifier(nil)
	var delays []time.Duration
	v.wait = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		// Файл появляется между попыткой 1 и 2
		if len(delays) == 1 {
			touch(t, late)
		}
		return nil
	}

	if !v.Verify(context.Background(), []string{late}, VerifyPolicy{MaxAttempts: 3, Delay: 2 * time.Second}) {
		t.Fatal("expected true when file appears before attempt 2")
	}
	if len(delays) != 1 || delays[0] != 2*time.Second {
		t.Errorf("unexpected waits: %v", delays)
	}
}

func TestVerifier_AppearsAfterLastAttempt(t *testing.T) {
	dir := t.TempDir()
	late := filepath.Join(dir, "late.csv")

	v := NewVerifier(nil)
	waits := 0
	v.wait = func(context.Context, time.Duration) error {
		waits++
		return nil
	}

	missing := v.VerifyMissing(context.Background(), []string{late}, VerifyPolicy{MaxAttempts: 3, Delay: 2 * time.Second})

	// Файл появляется только после третьей попытки
	touch(t, late)

	if len(missing) != 1 || missing[0] != late {
		t.Fatalf("missing = %v, want [%s]", missing, late)
	}
	// Между тремя попытками — две паузы, после последней не ждём
	if waits != 2 {
		t.Errorf("expected 2 waits, got %d", waits)
	}
}

func TestVerifier_DirectoryIsNotArtifact(t *testing.T) {
	dir := t.TempDir()

	v := NewVerifier(nil)
	v.wait = func(context.Context, time.Duration) error { return nil }

	if v.Verify(context.Background(), []string{dir}, VerifyPolicy{MaxAttempts: 1}) {
		t.Fatal("directory should not satisfy artifact check")
	}
}

func TestVerifier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := NewVerifier(nil)
	start := time.Now()
	ok := v.Verify(ctx, []string{filepath.Join(t.TempDir(), "never.csv")}, VerifyPolicy{MaxAttempts: 3, Delay: time.Minute})

	if ok {
		t.Fatal("expected false")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("verification should stop waiting on cancelled context")
	}
}

func TestVerifier_RealDelay(t *testing.T) {
	dir := t.TempDir()
	late := filepath.Join(dir, "late.csv")

	go func() {
		time.Sleep(20 * time.Millisecond)
		touch(t, late)
	}()

	v := NewVerifier(nil)
	if !v.Verify(context.Background(), []string{late}, VerifyPolicy{MaxAttempts: 50, Delay: 10 * time.Millisecond}) {
		t.Fatal("expected file to be found within the retry window")
	}
}
