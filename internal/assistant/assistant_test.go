package assistant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Skufu/medassist/internal/history"
	"github.com/Skufu/medassist/internal/llm"
	"github.com/Skufu/medassist/internal/metrics"
)

type fakeModel struct {
	mu    sync.Mutex
	calls []llm.Request
	err   error
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return "reply to " + req.Message, nil
}

func newBackend(t *testing.T) *history.FileBackend {
	dir := t.TempDir()
	return &history.FileBackend{DefaultFile: filepath.Join(dir, "chat_history.json"), Dir: dir}
}

func TestIsSentinel(t *testing.T) {
	for _, in := range []string{"exit", "QUIT", "  Stop \n", "\tExIt"} {
		if !IsSentinel(in) {
			t.Errorf("expected %q to be a sentinel", in)
		}
	}
	for _, in := range []string{"", "exit now", "stopping", "please stop"} {
		if IsSentinel(in) {
			t.Errorf("did not expect %q to be a sentinel", in)
		}
	}
}

func TestRespondAppendsTwoTurns(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	sessions := NewSessions(backend)
	model := &fakeModel{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g := NewGateway(model, m)

	s, err := sessions.Get(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	for i, prompt := range []string{"I have a cough", "It is dry"} {
		reply, err := g.Respond(ctx, s, prompt)
		if err != nil {
			t.Fatalf("respond: %v", err)
		}
		if reply != "reply to "+prompt {
			t.Fatalf("unexpected reply %q", reply)
		}
		tr := s.Transcript()
		if len(tr) != 2*(i+1) {
			t.Fatalf("expected %d turns, got %d", 2*(i+1), len(tr))
		}
		last := tr[len(tr)-2:]
		if last[0].Role != history.RoleUser || last[0].Text() != prompt ||
			last[1].Role != history.RoleAssistant || last[1].Text() != reply {
			t.Fatalf("unexpected turns: %#v", last)
		}
	}

	if len(model.calls) != 2 || len(model.calls[1].History) != 2 {
		t.Fatalf("expected second call to carry prior history, got %+v", model.calls)
	}
	if model.calls[0].System != SystemInstruction {
		t.Fatal("system instruction not attached to the session")
	}

	persisted, err := backend.Open(history.DefaultSession).Load(ctx)
	if err != nil || len(persisted) != 4 {
		t.Fatalf("expected 4 persisted turns, got %d (%v)", len(persisted), err)
	}
	if got := testutil.ToFloat64(m.ChatExchanges.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful exchanges, got %v", got)
	}
}

func TestRespondModelFailureLeavesTranscript(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	s, _ := NewSessions(backend).Get(ctx, history.DefaultSession)
	g := NewGateway(&fakeModel{err: llm.ErrUpstream}, nil)

	if _, err := g.Respond(ctx, s, "hello"); !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(s.Transcript()) != 0 {
		t.Fatalf("transcript changed on failure: %#v", s.Transcript())
	}
	persisted, _ := backend.Open(history.DefaultSession).Load(ctx)
	if len(persisted) != 0 {
		t.Fatalf("history persisted on failure: %#v", persisted)
	}
}

func TestSessionsResumeFromStore(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	prior := history.Transcript{}.Append("earlier", "answer")
	if err := backend.Open(history.DefaultSession).Save(ctx, prior); err != nil {
		t.Fatal(err)
	}

	sessions := NewSessions(backend)
	s1, err := sessions.Get(ctx, history.DefaultSession)
	if err != nil {
		t.Fatal(err)
	}
	s2, _ := sessions.Get(ctx, "")
	if s1 != s2 {
		t.Fatal("expected the same session object for the default id")
	}
	if len(s1.Transcript()) != 2 {
		t.Fatalf("expected prior transcript, got %#v", s1.Transcript())
	}
}

func TestSessionsIsolated(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	sessions := NewSessions(backend)
	var counts []int
	sessions.OnChange(func(n int) { counts = append(counts, n) })
	g := NewGateway(&fakeModel{}, nil)

	a, err := sessions.New(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := sessions.Get(ctx, history.DefaultSession)
	if _, err := g.Respond(ctx, a, "only in a"); err != nil {
		t.Fatal(err)
	}
	if len(b.Transcript()) != 0 {
		t.Fatalf("session b saw session a's turns: %#v", b.Transcript())
	}
	if len(counts) != 2 || counts[1] != 2 {
		t.Fatalf("unexpected session counts: %v", counts)
	}
}

func TestSessionsRejectInvalidID(t *testing.T) {
	_, err := NewSessions(newBackend(t)).Get(context.Background(), "../etc/passwd")
	if err == nil || !strings.Contains(err.Error(), "invalid session id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestRespondSerializesPerSession(t *testing.T) {
	ctx := context.Background()
	s, _ := NewSessions(newBackend(t)).Get(ctx, "")
	g := NewGateway(&fakeModel{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Respond(ctx, s, "q"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	tr := s.Transcript()
	if len(tr) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(tr))
	}
	for i, turn := range tr {
		want := history.RoleUser
		if i%2 == 1 {
			want = history.RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d has role %s", i, turn.Role)
		}
	}
}

func TestRespondSaveFailureLeavesTranscript(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	histDir := filepath.Join(dir, "history")
	backend := &history.FileBackend{DefaultFile: filepath.Join(histDir, "chat_history.json"), Dir: histDir}
	model := &fakeModel{}
	m := metrics.New(prometheus.NewRegistry())
	g := NewGateway(model, m)

	s, err := NewSessions(backend).Get(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Respond(ctx, s, "first"); err == nil || !strings.Contains(err.Error(), "save history") {
		t.Fatalf("expected save error, got %v", err)
	}
	if len(s.Transcript()) != 0 {
		t.Fatalf("unsaved turns kept in memory: %#v", s.Transcript())
	}
	if got := testutil.ToFloat64(m.ChatExchanges.WithLabelValues("success")); got != 0 {
		t.Fatalf("failed exchange counted as success: %v", got)
	}
	if got := testutil.ToFloat64(m.ChatExchanges.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed exchange, got %v", got)
	}

	if err := os.Mkdir(histDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Respond(ctx, s, "second"); err != nil {
		t.Fatal(err)
	}
	if len(model.calls[1].History) != 0 {
		t.Fatalf("dropped exchange was sent to the model: %#v", model.calls[1].History)
	}
	persisted, _ := backend.Open(history.DefaultSession).Load(ctx)
	if len(persisted) != 2 || persisted[0].Text() != "second" {
		t.Fatalf("unexpected persisted history: %#v", persisted)
	}
}

func TestSessionsEvictLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	sessions := NewSessionsWithLimit(backend, 2)
	var counts []int
	sessions.OnChange(func(n int) { counts = append(counts, n) })
	g := NewGateway(&fakeModel{}, nil)

	a, _ := sessions.New(ctx)
	b, _ := sessions.New(ctx)
	if _, err := g.Respond(ctx, b, "kept in the store"); err != nil {
		t.Fatal(err)
	}
	if again, _ := sessions.Get(ctx, a.ID); again != a {
		t.Fatal("expected cached session")
	}

	if _, err := sessions.New(ctx); err != nil {
		t.Fatal(err)
	}
	if counts[len(counts)-1] != 2 {
		t.Fatalf("registry grew past its limit: %v", counts)
	}
	if again, _ := sessions.Get(ctx, a.ID); again != a {
		t.Fatal("recently used session was evicted")
	}

	reloaded, err := sessions.Get(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded == b {
		t.Fatal("expected the least recently used session to be evicted")
	}
	if len(reloaded.Transcript()) != 2 {
		t.Fatalf("evicted session lost its history: %#v", reloaded.Transcript())
	}
}

func TestSessionsKeepBusySession(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionsWithLimit(newBackend(t), 1)

	a, _ := sessions.New(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := sessions.New(ctx); err != nil {
		t.Fatal(err)
	}
	sessions.mu.Lock()
	_, ok := sessions.sessions[a.ID]
	sessions.mu.Unlock()
	if !ok {
		t.Fatal("session in an exchange was evicted")
	}
}
