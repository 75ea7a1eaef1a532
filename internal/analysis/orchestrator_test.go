package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"visuallab/internal/domain"
	"visuallab/internal/notice"
	"visuallab/internal/scene"
)

type fakeAnalyzer struct {
	calls   atomic.Int32
	release chan struct{}
	entered chan struct{}

	mu           sync.Mutex
	instructions []string
	images       []*domain.ImagePayload

	analyze func(call int32) (string, error)
}

func newFakeAnalyzer(fn func(call int32) (string, error)) *fakeAnalyzer {
	return &fakeAnalyzer{analyze: fn}
}

func (f *fakeAnalyzer) blocking() *fakeAnalyzer {
	f.release = make(chan struct{})
	f.entered = make(chan struct{}, 16)
	return f
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, instruction string, image *domain.ImagePayload) (string, error) {
	call := f.calls.Add(1)
	f.mu.Lock()
	f.instructions = append(f.instructions, instruction)
	f.images = append(f.images, image)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.analyze(call)
}

func newTestOrchestrator(t *testing.T, client TextAnalyzer, board *notice.Board) (*Orchestrator, *scene.Store) {
	t.Helper()
	store := scene.NewStore()
	opts := Options{
		Store:    store,
		Client:   client,
		Progress: ProgressConfig{Interval: time.Millisecond},
	}
	if board != nil {
		opts.Notices = board
	}
	orch, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return orch, store
}

func appendScene(t *testing.T, store *scene.Store) domain.Scene {
	t.Helper()
	sc, ok := store.Append(scene.NewScene(domain.Frame{
		Timestamp: domain.VideoTimestamp(3.25),
		Thumbnail: "data:image/png;base64,AAAA",
		Payload:   domain.ImagePayload{MIMEType: "image/png", Data: "AAAA"},
	}))
	if !ok {
		t.Fatal("append failed")
	}
	return sc
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Client: newFakeAnalyzer(nil)}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New(Options{Store: scene.NewStore()}); err == nil {
		t.Fatal("expected error without client")
	}
}

func TestAnalyzeCompletesScene(t *testing.T) {
	client := newFakeAnalyzer(func(int32) (string, error) { return "cinematic night street", nil })
	orch, store := newTestOrchestrator(t, client, nil)
	sc := appendScene(t, store)

	if err := orch.Analyze(context.Background(), sc.ID, domain.VariantPrompt); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	got, _ := store.Get(sc.ID)
	if got.Status != domain.SceneStatusCompleted || got.Progress != 100 || got.ResultText != "cinematic night street" {
		t.Fatalf("unexpected scene: %+v", got)
	}
	if got.Variant != domain.VariantPrompt {
		t.Fatalf("Variant = %q", got.Variant)
	}
	if !strings.Contains(client.instructions[0], "image-generation prompt") {
		t.Fatalf("unexpected instruction: %q", client.instructions[0])
	}
	if client.images[0] == nil || client.images[0].Data != "AAAA" {
		t.Fatalf("image payload not attached: %+v", client.images[0])
	}
}

func TestAnalyzeUsesVariantInstruction(t *testing.T) {
	client := newFakeAnalyzer(func(int32) (string, error) { return "low rumble, distant sirens", nil })
	orch, store := newTestOrchestrator(t, client, nil)
	sc := appendScene(t, store)

	if err := orch.Analyze(context.Background(), sc.ID, domain.VariantAudio); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	want, _ := InstructionFor(domain.VariantAudio)
	if client.instructions[0] != want {
		t.Fatalf("instruction = %q", client.instructions[0])
	}
	got, _ := store.Get(sc.ID)
	if got.Variant != domain.VariantAudio {
		t.Fatalf("Variant = %q", got.Variant)
	}
}

func TestAnalyzeRejectsUnknownVariantWithoutStateChange(t *testing.T) {
	client := newFakeAnalyzer(func(int32) (string, error) { return "x", nil })
	orch, store := newTestOrchestrator(t, client, nil)
	sc := appendScene(t, store)

	if err := orch.Analyze(context.Background(), sc.ID, "poem"); !errors.Is(err, domain.ErrInvalidVariant) {
		t.Fatalf("expected ErrInvalidVariant, got %v", err)
	}
	got, _ := store.Get(sc.ID)
	if got.Status != domain.SceneStatusPending || client.calls.Load() != 0 {
		t.Fatalf("unexpected side effects: %+v calls=%d", got, client.calls.Load())
	}
}

func TestAnalyzeMissingScene(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newFakeAnalyzer(nil), nil)
	if err := orch.Analyze(context.Background(), "nope", domain.VariantPrompt); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalyzeFailureKeepsPreviousText(t *testing.T) {
	board := notice.NewBoard(10, nil)
	client := newFakeAnalyzer(func(call int32) (string, error) {
		if call == 1 {
			return "T1", nil
		}
		return "", errors.New("gemini status 500")
	})
	orch, store := newTestOrchestrator(t, client, board)
	sc := appendScene(t, store)

	if err := orch.Analyze(context.Background(), sc.ID, domain.VariantPrompt); err != nil {
		t.Fatalf("first Analyze returned error: %v", err)
	}
	if err := orch.Analyze(context.Background(), sc.ID, domain.VariantPrompt); err == nil {
		t.Fatal("expected second Analyze to fail")
	}

	got, _ := store.Get(sc.ID)
	if got.Status != domain.SceneStatusError || got.Progress != 0 || got.ResultText != "T1" {
		t.Fatalf("unexpected scene: %+v", got)
	}
	if got.LastError == "" {
		t.Fatal("expected LastError to be recorded")
	}
	notices := board.Recent(0)
	if len(notices) != 1 || notices[0].Source != "analysis" || !strings.Contains(notices[0].Message, "3.25s") {
		t.Fatalf("unexpected notices: %+v", notices)
	}
}

func TestConcurrentAnalyzeMakesOneRequest(t *testing.T) {
	client := newFakeAnalyzer(func(int32) (string, error) { return "only once", nil }).blocking()
	orch, store := newTestOrchestrator(t, client, nil)
	sc := appendScene(t, store)

	started, err := orch.Start(context.Background(), sc.ID, domain.VariantPrompt)
	if err != nil || !started {
		t.Fatalf("Start = %v, %v", started, err)
	}
	<-client.entered

	if err := orch.Analyze(context.Background(), sc.ID, domain.VariantPrompt); !errors.Is(err, ErrAlreadyAnalyzing) {
		t.Fatalf("expected ErrAlreadyAnalyzing, got %v", err)
	}
	again, err := orch.Start(context.Background(), sc.ID, domain.VariantPrompt)
	if err != nil || again {
		t.Fatalf("second Start = %v, %v", again, err)
	}

	close(client.release)
	orch.Wait()

	if calls := client.calls.Load(); calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	got, _ := store.Get(sc.ID)
	if got.Status != domain.SceneStatusCompleted || got.Progress != 100 {
		t.Fatalf("unexpected scene: %+v", got)
	}
}

func TestProgressIsMonotonicAndCapped(t *testing.T) {
	client := newFakeAnalyzer(func(int32) (string, error) { return "done", nil }).blocking()
	store := scene.NewStore()
	orch, err := New(Options{
		Store:    store,
		Client:   client,
		Progress: ProgressConfig{Seed: 5, Interval: time.Millisecond, Ceiling: 40},
		Step:     func() int { return 8 },
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	sc := appendScene(t, store)

	if _, err := orch.Start(context.Background(), sc.ID, domain.VariantPrompt); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	<-client.entered

	prev := 0
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := store.Get(sc.ID)
		if got.Progress < prev {
			t.Fatalf("progress decreased from %d to %d", prev, got.Progress)
		}
		if got.Progress > 40 {
			t.Fatalf("progress %d exceeded ceiling", got.Progress)
		}
		prev = got.Progress
		if prev == 40 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("progress never reached ceiling, last %d", prev)
		}
		time.Sleep(time.Millisecond)
	}

	close(client.release)
	orch.Wait()
	got, _ := store.Get(sc.ID)
	if got.Progress != 100 {
		t.Fatalf("Progress = %d after completion", got.Progress)
	}
}

func TestAnalyzeAllSkipsCompletedScenes(t *testing.T) {
	client := newFakeAnalyzer(func(int32) (string, error) { return "text", nil })
	orch, store := newTestOrchestrator(t, client, nil)
	done := appendScene(t, store)
	if err := orch.Analyze(context.Background(), done.ID, domain.VariantPrompt); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	a := appendScene(t, store)
	b := appendScene(t, store)

	launched, err := orch.AnalyzeAll(context.Background(), domain.VariantDirector)
	if err != nil {
		t.Fatalf("AnalyzeAll returned error: %v", err)
	}
	orch.Wait()

	if len(launched) != 2 || launched[0] != a.ID || launched[1] != b.ID {
		t.Fatalf("launched = %v", launched)
	}
	if calls := client.calls.Load(); calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if n := len(store.Query(scene.Completed)); n != 3 {
		t.Fatalf("completed = %d, want 3", n)
	}
}

func TestRunAllCountsFailuresWithoutStoppingOthers(t *testing.T) {
	client := newFakeAnalyzer(func(call int32) (string, error) {
		if call == 2 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	orch, store := newTestOrchestrator(t, client, nil)
	for i := 0; i < 4; i++ {
		appendScene(t, store)
	}

	failed, err := orch.RunAll(context.Background(), domain.VariantPrompt, 1)
	if err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if n := len(store.Query(scene.Completed)); n != 3 {
		t.Fatalf("completed = %d, want 3", n)
	}
	if n := len(store.Query(scene.WithStatus(domain.SceneStatusError))); n != 1 {
		t.Fatalf("errored = %d, want 1", n)
	}
}

func TestProgressConfigNormalization(t *testing.T) {
	got := ProgressConfig{Seed: 40, Ceiling: 120, MinStep: 3, MaxStep: 1}.normalized()
	if got.Seed != 14 || got.Ceiling != 99 || got.Interval != 400*time.Millisecond {
		t.Fatalf("unexpected config: %+v", got)
	}
	if got.MaxStep < got.MinStep {
		t.Fatalf("MaxStep %d < MinStep %d", got.MaxStep, got.MinStep)
	}
	for i := 0; i < 100; i++ {
		if s := got.step(); s < got.MinStep || s > got.MaxStep {
			t.Fatalf("step %d out of range", s)
		}
	}
}
