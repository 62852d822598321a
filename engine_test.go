package dynamo

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// gatedTarget blocks inside ConfigData until released, so tests can hold a
// cycle in flight.
type gatedTarget struct {
	*fakeTarget
	entered chan struct{}
	gate    chan struct{}
}

func (t *gatedTarget) ConfigData(ctx context.Context) ([]byte, error) {
	t.entered <- struct{}{}
	<-t.gate
	return t.fakeTarget.ConfigData(ctx)
}

// notifyTarget reports every completed cycle on a channel via the after hook.
type notifyTarget struct {
	*fakeTarget
	cycles chan afterCall
}

func (t *notifyTarget) AfterRegenerate(force, different, cycled bool, hash string) {
	t.cycles <- afterCall{force: force, different: different, cycled: cycled, hash: hash}
}

func waitCycle(t *testing.T, ch chan afterCall) afterCall {
	t.Helper()
	select {
	case call := <-ch:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for cycle")
		return afterCall{}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil target")
	}
	if _, err := New(&fakeTarget{path: ""}); err == nil {
		t.Error("expected error for empty config path")
	}
	target := &fakeTarget{path: "/tmp/app.conf"}
	if _, err := New(target, WithSleep(-time.Second)); err == nil {
		t.Error("expected error for negative sleep")
	}
	if _, err := New(target, WithCooldown(-time.Second)); err == nil {
		t.Error("expected error for negative cooldown")
	}
	if _, err := New(target, WithSleep(time.Second), WithCooldown(2*time.Second)); err == nil {
		t.Error("expected error for cooldown exceeding sleep")
	}
}

func TestRun_BootstrapCreatesAbsentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.conf")
	target := &fakeTarget{path: path, data: []byte("first")}
	e := newEngine(t, target, WithOneShot())

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := readFile(t, path); !bytes.Equal(got, []byte("first")) {
		t.Errorf("expected first generated content, got %q", got)
	}
	_, reloads := target.counts()
	if reloads != 0 {
		t.Errorf("expected no reload on bootstrap write, got %d", reloads)
	}
	if e.State() != StateTerminated {
		t.Errorf("expected terminated after one-shot, got %s", e.State())
	}
}

func TestRun_BootstrapRegeneratesExistingFile(t *testing.T) {
	path := liveFile(t, "stale")
	target := &fakeTarget{path: path, data: []byte("fresh")}
	e := newEngine(t, target, WithOneShot())

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := readFile(t, path); !bytes.Equal(got, []byte("fresh")) {
		t.Errorf("expected fresh content, got %q", got)
	}
	_, reloads := target.counts()
	if reloads != 1 {
		t.Errorf("expected forced bootstrap reload, got %d", reloads)
	}
}

func TestRun_BootstrapGenerationFailureLeavesFileAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.conf")
	target := &fakeTarget{path: path, genErr: errors.New("not ready")}
	e := newEngine(t, target, WithOneShot())

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file to stay absent, stat err = %v", err)
	}
}

func TestRun_SecondCallFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.conf")
	target := &fakeTarget{path: path, data: []byte("x")}
	e := newEngine(t, target, WithOneShot())

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := e.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if err := e.Watch("/etc/whatever", WatchFile); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted from Watch, got %v", err)
	}
}

func TestRun_StopExitsLoop(t *testing.T) {
	clock := clockz.NewFakeClock()
	path := liveFile(t, "old")
	target := &notifyTarget{
		fakeTarget: &fakeTarget{path: path, data: []byte("new")},
		cycles:     make(chan afterCall, 8),
	}
	e := newEngine(t, target,
		WithWatcher(NopWatcher{}),
		WithClock(clock),
		WithSleep(time.Hour),
		WithCooldown(0),
	)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	waitCycle(t, target.cycles) // bootstrap

	e.Stop()
	e.Stop() // idempotent

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}

	if e.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", e.State())
	}
	select {
	case <-target.cycles:
		t.Error("unexpected regeneration after shutdown")
	default:
	}
}

func TestRun_ContextCancelExitsLoop(t *testing.T) {
	clock := clockz.NewFakeClock()
	path := liveFile(t, "old")
	target := &notifyTarget{
		fakeTarget: &fakeTarget{path: path, data: []byte("new")},
		cycles:     make(chan afterCall, 8),
	}
	e := newEngine(t, target,
		WithWatcher(NopWatcher{}),
		WithClock(clock),
		WithSleep(time.Hour),
		WithCooldown(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitCycle(t, target.cycles) // bootstrap
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on context cancel")
	}
}

func TestRun_TriggersCoalesce(t *testing.T) {
	clock := clockz.NewFakeClock()
	path := liveFile(t, "old")
	target := &gatedTarget{
		fakeTarget: &fakeTarget{path: path, data: []byte("new")},
		entered:    make(chan struct{}),
		gate:       make(chan struct{}),
	}
	e := newEngine(t, target,
		WithWatcher(NopWatcher{}),
		WithClock(clock),
		WithSleep(time.Hour),
		WithCooldown(0),
	)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	// Bootstrap cycle.
	<-target.entered
	target.gate <- struct{}{}

	// Wake the loop with one trigger, then burst more while the cycle is
	// held in flight.
	e.Kick()
	<-target.entered
	for i := 0; i < 5; i++ {
		e.Kick()
	}
	target.gate <- struct{}{}

	// The burst collapses into exactly one more regeneration.
	<-target.entered
	target.gate <- struct{}{}

	select {
	case <-target.entered:
		t.Fatal("burst of triggers produced more than one extra regeneration")
	case <-time.After(100 * time.Millisecond):
	}

	e.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	gens, _ := target.counts()
	if gens != 3 {
		t.Errorf("expected 3 generations (bootstrap + 2 triggered), got %d", gens)
	}
}

func TestRun_TimeoutRegeneratesUnforced(t *testing.T) {
	clock := clockz.NewFakeClock()
	path := liveFile(t, "same")
	target := &notifyTarget{
		fakeTarget: &fakeTarget{path: path, data: []byte("same")},
		cycles:     make(chan afterCall, 8),
	}
	e := newEngine(t, target,
		WithWatcher(NopWatcher{}),
		WithClock(clock),
		WithSleep(2*time.Second),
		WithCooldown(0),
	)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	boot := waitCycle(t, target.cycles)
	if !boot.force {
		t.Error("expected forced bootstrap cycle")
	}

	// Let the loop reach its wait before moving the clock.
	time.Sleep(20 * time.Millisecond)
	clock.Advance(2 * time.Second)
	clock.BlockUntilReady()

	call := waitCycle(t, target.cycles)
	if call.force {
		t.Error("expected unforced timeout regeneration")
	}
	if call.cycled {
		t.Error("expected unchanged content to skip the swap")
	}

	e.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestRun_CooldownDefersTriggers(t *testing.T) {
	clock := clockz.NewFakeClock()
	path := liveFile(t, "old")
	target := &notifyTarget{
		fakeTarget: &fakeTarget{path: path, data: []byte("new")},
		cycles:     make(chan afterCall, 8),
	}
	e := newEngine(t, target,
		WithWatcher(NopWatcher{}),
		WithClock(clock),
		WithSleep(time.Minute),
		WithCooldown(5*time.Second),
	)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	waitCycle(t, target.cycles) // bootstrap

	// Trigger during the cooldown window: it must stay queued.
	e.Kick()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-target.cycles:
		t.Fatal("trigger was consumed during cooldown")
	default:
	}

	clock.Advance(5 * time.Second)
	clock.BlockUntilReady()

	call := waitCycle(t, target.cycles)
	if !call.force {
		t.Error("expected forced regeneration from deferred trigger")
	}

	e.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestRun_WatchEventForcesRegeneration(t *testing.T) {
	path := liveFile(t, "old")
	watched := filepath.Join(t.TempDir(), "services.yaml")
	if err := os.WriteFile(watched, []byte("v1"), 0o644); err != nil {
		t.Fatalf("failed to seed watched file: %v", err)
	}

	target := &notifyTarget{
		fakeTarget: &fakeTarget{path: path, data: []byte("new")},
		cycles:     make(chan afterCall, 8),
	}
	e := newEngine(t, target,
		WithSleep(time.Minute),
		WithCooldown(0),
	)
	if err := e.Watch(watched, WatchFile); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitCycle(t, target.cycles) // bootstrap

	// Give the watcher a moment to establish, then touch the watched file.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(watched, []byte("v2"), 0o644); err != nil {
		t.Fatalf("failed to update watched file: %v", err)
	}

	call := waitCycle(t, target.cycles)
	if !call.force {
		t.Error("expected watch wake to force the regeneration")
	}

	e.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
