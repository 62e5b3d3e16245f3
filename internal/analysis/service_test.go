package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/apierr"
	"github.com/alnah/guidematrix/internal/lang"
	"github.com/alnah/guidematrix/internal/llm"
	"github.com/alnah/guidematrix/internal/lock"
	"github.com/alnah/guidematrix/internal/project"
	"github.com/alnah/guidematrix/internal/prompt"
	"github.com/alnah/guidematrix/internal/schema"
	"github.com/alnah/guidematrix/internal/store"
	"github.com/alnah/guidematrix/internal/validate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeInvoker replays scripted replies in order; the last one repeats.
type fakeInvoker struct {
	mu       sync.Mutex
	replies  []reply
	requests []llm.Request
}

type reply struct {
	text string
	err  error
}

func (f *fakeInvoker) Invoke(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	r := f.replies[min(len(f.requests), len(f.replies))-1]
	return r.text, r.err
}

func (f *fakeInvoker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func fastRetry() analysis.Option {
	return analysis.WithRetry(apierr.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
}

var testKey = store.Key{ProjectID: "proj-1", UserID: "user-1"}

func testConfig() project.Config {
	return project.Config{
		StakeholderType: "Oncologists",
		Country:         "Germany",
		TherapyArea:     "NSCLC",
		ResearchGoal:    "Understand first-line treatment choice",
		GuideContext: `{"sections":[
			{"title":"Intro","questions":["What is your role?"]},
			{"title":"Treatment","questions":["Which treatments do you use first-line?"]}
		]}`,
	}
}

func testDocs() []project.Document {
	return []project.Document{
		{ID: "t1", Content: "Interviewer: What is your role?\nRespondent 1: I lead the thoracic oncology unit.\n" +
			"Interviewer: Which treatments do you use first-line?\nRespondent 1: Mostly immunotherapy combinations."},
		{ID: "blank", Content: "   "},
	}
}

const goodReply = "```json\n" + `{"content_analysis":{"title":"NSCLC","description":"First line","questions":[
	{"question_type":"Intro","question":"What is your role?","section":"Intro","respondents":{"Respondent 1":{"quote":"I lead the thoracic oncology unit.","summary":"Unit lead","theme":"Role"}}},
	{"question_type":"Treatment","question":"Which treatments do you use first-line?","section":"Treatment","respondents":{"Respondent 1":{"quote":"Mostly immunotherapy combinations.","summary":"IO combos","theme":"Immunotherapy"}}}
]}}` + "\n```"

// ---------------------------------------------------------------------------
// TestService_Run - end to end with a scripted model
// ---------------------------------------------------------------------------

func TestService_Run(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{replies: []reply{{text: goodReply}}}
	st := store.NewMemory()
	svc := analysis.NewService(inv, st, fastRetry())

	var phases []analysis.Phase
	out, err := svc.Run(context.Background(), analysis.Request{
		Key:       testKey,
		Config:    testConfig(),
		Documents: testDocs(),
	}, analysis.WithEvents(func(e analysis.Event) {
		if e.RunID == "" {
			t.Error("event without run id")
		}
		phases = append(phases, e.Phase)
	}))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []analysis.Phase{
		analysis.PhaseInputChecked, analysis.PhaseGuideExtracted, analysis.PhaseSpeakersDetected,
		analysis.PhasePromptComposed, analysis.PhaseInvokingModel, analysis.PhaseValidating,
		analysis.PhasePersisted,
	}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}

	if out.Result.Status != validate.StatusValid {
		t.Errorf("Status = %q, repairs %v", out.Result.Status, out.Result.Repairs)
	}
	if len(out.Result.Defects) != 0 {
		t.Errorf("Defects = %v", out.Result.Defects)
	}
	if n := len(out.Result.Matrix.Rows); n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	if len(out.Prepared.Documents) != 1 {
		t.Errorf("blank document should be skipped, got %d", len(out.Prepared.Documents))
	}

	rec, err := st.Get(context.Background(), testKey)
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if rec.RunID != out.RunID || rec.Version != 1 || rec.Status != "valid" || rec.Kind != "content_analysis" {
		t.Errorf("record = %+v", rec)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		t.Fatalf("stored data is not JSON: %v", err)
	}
	if _, ok := doc["content_analysis"]; !ok {
		t.Errorf("stored data = %s", rec.Data)
	}

	req := inv.requests[0]
	if req.System != prompt.SystemMessage {
		t.Errorf("system message = %q", req.System)
	}
	if !strings.Contains(req.Prompt, "I lead the thoracic oncology unit.") {
		t.Error("prompt missing transcript text")
	}
}

func TestService_Run_OverwritesPrevious(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{replies: []reply{{text: goodReply}}}
	svc := analysis.NewService(inv, store.NewMemory(), fastRetry())
	req := analysis.Request{Key: testKey, Config: testConfig(), Documents: testDocs()}

	first, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.RunID == second.RunID {
		t.Error("run ids should differ")
	}

	rec, err := svc.Get(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != 2 || rec.RunID != second.RunID {
		t.Errorf("record = %+v, want version 2 from second run", rec)
	}
}

// ---------------------------------------------------------------------------
// TestService_Run_InputErrors - rejected before any model call
// ---------------------------------------------------------------------------

func TestService_Run_InputErrors(t *testing.T) {
	t.Parallel()

	badLang := testConfig()
	badLang.OutputLanguage = "klingon"

	tests := []struct {
		name    string
		req     analysis.Request
		wantErr error
	}{
		{name: "missing config", req: analysis.Request{Key: testKey, Documents: testDocs()}, wantErr: analysis.ErrMissingConfig},
		{name: "no documents", req: analysis.Request{Key: testKey, Config: testConfig()}, wantErr: analysis.ErrNoDocuments},
		{
			name:    "all documents blank",
			req:     analysis.Request{Key: testKey, Config: testConfig(), Documents: []project.Document{{ID: "a"}, {ID: "b", Content: "\n\t"}}},
			wantErr: analysis.ErrEmptyDocuments,
		},
		{name: "blank key", req: analysis.Request{Config: testConfig(), Documents: testDocs()}, wantErr: store.ErrInvalidKey},
		{name: "invalid language", req: analysis.Request{Key: testKey, Config: badLang, Documents: testDocs()}, wantErr: lang.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			inv := &fakeInvoker{replies: []reply{{text: goodReply}}}
			st := store.NewMemory()
			_, err := analysis.NewService(inv, st).Run(context.Background(), tt.req)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if inv.calls() != 0 {
				t.Errorf("invoker called %d times", inv.calls())
			}
		})
	}
}

func TestIsInputError(t *testing.T) {
	t.Parallel()

	if !analysis.IsInputError(fmt.Errorf("wrap: %w", analysis.ErrEmptyDocuments)) {
		t.Error("wrapped ErrEmptyDocuments should be an input error")
	}
	if analysis.IsInputError(analysis.ErrRunInProgress) {
		t.Error("ErrRunInProgress is not an input error")
	}
}

// ---------------------------------------------------------------------------
// TestService_Run_Transport - retry policy and error surfacing
// ---------------------------------------------------------------------------

func TestService_Run_Transport(t *testing.T) {
	t.Parallel()

	connErr := fmt.Errorf("dial tcp: %w", apierr.ErrConnectivity)
	authErr := fmt.Errorf("status 401: %w: %w", apierr.ErrUpstreamStatus, apierr.ErrAuthFailed)

	tests := []struct {
		name      string
		replies   []reply
		wantErr   error
		wantCalls int
	}{
		{name: "transient then success", replies: []reply{{err: connErr}, {text: goodReply}}, wantCalls: 2},
		{name: "retries exhausted", replies: []reply{{err: connErr}}, wantErr: apierr.ErrConnectivity, wantCalls: 3},
		{name: "auth is not retried", replies: []reply{{err: authErr}}, wantErr: apierr.ErrAuthFailed, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			inv := &fakeInvoker{replies: tt.replies}
			st := store.NewMemory()
			_, err := analysis.NewService(inv, st, fastRetry()).Run(context.Background(),
				analysis.Request{Key: testKey, Config: testConfig(), Documents: testDocs()})

			if tt.wantErr == nil && err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if _, getErr := st.Get(context.Background(), testKey); !errors.Is(getErr, store.ErrNotFound) {
					t.Error("failed run must not persist")
				}
			}
			if inv.calls() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", inv.calls(), tt.wantCalls)
			}
		})
	}
}

func TestService_Run_GarbageReplyFallsBack(t *testing.T) {
	t.Parallel()

	inv := &fakeInvoker{replies: []reply{{text: "Sorry, I cannot help with that."}}}
	svc := analysis.NewService(inv, store.NewMemory())
	out, err := svc.Run(context.Background(), analysis.Request{Key: testKey, Config: testConfig(), Documents: testDocs()})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out.Result.Status != validate.StatusFallback || out.Record.Status != "fallback" {
		t.Errorf("status = %q / %q", out.Result.Status, out.Record.Status)
	}
}

// ---------------------------------------------------------------------------
// TestService_Run_Lock - one run per key
// ---------------------------------------------------------------------------

func TestService_Run_Lock(t *testing.T) {
	t.Parallel()

	locker := lock.NewKeyed()
	release, err := locker.TryAcquire(context.Background(), testKey.String())
	if err != nil {
		t.Fatal(err)
	}

	inv := &fakeInvoker{replies: []reply{{text: goodReply}}}
	svc := analysis.NewService(inv, store.NewMemory(), analysis.WithLocker(locker))
	req := analysis.Request{Key: testKey, Config: testConfig(), Documents: testDocs()}

	if _, err := svc.Run(context.Background(), req); !errors.Is(err, analysis.ErrRunInProgress) {
		t.Fatalf("error = %v, want ErrRunInProgress", err)
	}
	if inv.calls() != 0 {
		t.Error("locked run must not call the model")
	}

	release()
	if _, err := svc.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() after release error: %v", err)
	}
	if locker.Held(testKey.String()) {
		t.Error("lock should be released after the run")
	}
}

func TestService_Run_LockKeysWithSlashes(t *testing.T) {
	t.Parallel()

	locker := lock.NewKeyed()
	held := store.Key{ProjectID: "a", UserID: "b/c"}
	release, err := locker.TryAcquire(context.Background(), held.String())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	svc := analysis.NewService(&fakeInvoker{replies: []reply{{text: goodReply}}}, store.NewMemory(), analysis.WithLocker(locker))
	req := analysis.Request{Key: store.Key{ProjectID: "a/b", UserID: "c"}, Config: testConfig(), Documents: testDocs()}
	if _, err := svc.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() for a different key error = %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestService_Run_StrictQuality - defects block persistence
// ---------------------------------------------------------------------------

func TestService_Run_StrictQuality(t *testing.T) {
	t.Parallel()

	placeholder := `{"content_analysis":{"title":"T","description":"D","questions":[
		{"question_type":"Intro","question":"What is your role?","respondents":{"Respondent 1":{"quote":"No specific quote available","summary":"","theme":"Role"}}}]}}`

	t.Run("strict rejects", func(t *testing.T) {
		t.Parallel()

		st := store.NewMemory()
		svc := analysis.NewService(&fakeInvoker{replies: []reply{{text: placeholder}}}, st, analysis.WithStrictQuality())
		out, err := svc.Run(context.Background(), analysis.Request{Key: testKey, Config: testConfig(), Documents: testDocs()})

		if !errors.Is(err, analysis.ErrQualityRejected) {
			t.Fatalf("error = %v, want ErrQualityRejected", err)
		}
		if len(out.Result.Defects) == 0 {
			t.Error("rejected outcome should carry the defects")
		}
		if _, err := st.Get(context.Background(), testKey); !errors.Is(err, store.ErrNotFound) {
			t.Error("rejected result must not be persisted")
		}
	})

	t.Run("default flags and persists", func(t *testing.T) {
		t.Parallel()

		st := store.NewMemory()
		svc := analysis.NewService(&fakeInvoker{replies: []reply{{text: placeholder}}}, st)
		out, err := svc.Run(context.Background(), analysis.Request{Key: testKey, Config: testConfig(), Documents: testDocs()})
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if out.Record.Version != 1 {
			t.Errorf("record = %+v", out.Record)
		}
		found := false
		for _, d := range out.Result.Defects {
			if d.Code == validate.DefectPlaceholderQuote {
				found = true
			}
		}
		if !found {
			t.Errorf("Defects = %v, want a placeholder quote", out.Result.Defects)
		}
	})
}

// ---------------------------------------------------------------------------
// TestService_Metrics
// ---------------------------------------------------------------------------

func TestService_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	svc := analysis.NewService(&fakeInvoker{replies: []reply{{text: goodReply}}}, store.NewMemory(),
		analysis.WithMetrics(analysis.NewMetrics(reg)))

	if _, err := svc.Run(context.Background(), analysis.Request{Key: testKey, Config: testConfig(), Documents: testDocs()}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Run(context.Background(), analysis.Request{Key: testKey}); err == nil {
		t.Fatal("expected input error")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[f.GetName()] += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				got[f.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	want := map[string]float64{
		"guidematrix_runs_total":            1,
		"guidematrix_run_failures_total":    1,
		"guidematrix_model_latency_seconds": 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// TestPrepare - prompt preview without a model
// ---------------------------------------------------------------------------

func TestPrepare(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.OutputLanguage = "de"
	p, err := analysis.Prepare(analysis.Request{Kind: schema.SummaryKind, Config: cfg, Documents: testDocs()})
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if p.Kind != schema.SummaryKind || p.Language.String() != "de" {
		t.Errorf("Prepared = kind %v, language %v", p.Kind, p.Language)
	}
	if n := len(p.Guide.Questions()); n != 2 {
		t.Errorf("guide questions = %d, want 2", n)
	}
	if len(p.Hints.Speakers) == 0 {
		t.Error("speaker hints should be detected")
	}
	if !strings.Contains(p.Prompt, "TRANSCRIPTS (1)") {
		t.Errorf("prompt should list one transcript:\n%s", p.Prompt)
	}

	if _, err := analysis.Prepare(analysis.Request{Config: cfg}); !errors.Is(err, analysis.ErrNoDocuments) {
		t.Errorf("error = %v, want ErrNoDocuments", err)
	}
}
