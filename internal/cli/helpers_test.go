package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	configLoader *mockConfigLoader
	invoker      *mockInvokerFactory
	store        *mockStoreOpener
	locker       *mockLockerFactory
	stdout       *syncBuffer
	stderr       *syncBuffer
}

func newTestMocks() *testMocks {
	return &testMocks{
		configLoader: &mockConfigLoader{},
		invoker:      &mockInvokerFactory{mockInvoker: &mockInvoker{}},
		store:        &mockStoreOpener{},
		locker:       &mockLockerFactory{},
		stdout:       &syncBuffer{},
		stderr:       &syncBuffer{},
	}
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

// testEnvOptions configures a test environment.
type testEnvOptions struct {
	getenv func(string) string
	now    func() time.Time
	mocks  *testMocks
}

// testEnvOption configures testEnv.
type testEnvOption func(*testEnvOptions)

func withGetenv(fn func(string) string) testEnvOption {
	return func(o *testEnvOptions) { o.getenv = fn }
}

// testEnv creates a test Env with all dependencies mocked.
// Returns the Env and the mocks for assertions.
func testEnv(opts ...testEnvOption) (*Env, *testMocks) {
	options := &testEnvOptions{
		getenv: defaultTestEnv,
		now: func() time.Time {
			return time.Date(2026, 1, 26, 14, 30, 52, 0, time.UTC)
		},
		mocks: newTestMocks(),
	}

	for _, opt := range opts {
		opt(options)
	}

	env := &Env{
		Stdout:         options.mocks.stdout,
		Stderr:         options.mocks.stderr,
		Getenv:         options.getenv,
		Now:            options.now,
		ConfigLoader:   options.mocks.configLoader,
		InvokerFactory: options.mocks.invoker,
		StoreOpener:    options.mocks.store,
		LockerFactory:  options.mocks.locker,
	}

	return env, options.mocks
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// staticEnv returns a getenv function that returns values from the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// defaultTestEnv returns API keys for both OpenAI and DeepSeek.
func defaultTestEnv(key string) string {
	switch key {
	case EnvOpenAIAPIKey:
		return "test-openai-key"
	case EnvDeepSeekAPIKey:
		return "test-deepseek-key"
	case "USER":
		return "tester"
	default:
		return ""
	}
}

// writeTestFile writes content to name in dir and returns the path.
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// runCommand executes cmd with args under a background context.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const testProjectYAML = `stakeholder_type: Oncologists
country: Germany
therapy_area: NSCLC
research_goal: First-line treatment choice
`

const testGuideJSON = `{"sections":[
  {"title":"Intro","questions":["What is your role?"]},
  {"title":"Treatment","questions":["Which treatments do you use first-line?"]}
]}`

const testTranscript = "Interviewer: What is your role?\n" +
	"Respondent 1: I lead the thoracic oncology unit.\n" +
	"Interviewer: Which treatments do you use first-line?\n" +
	"Respondent 1: Mostly immunotherapy combinations.\n"

const validReply = "```json\n" + `{"content_analysis":{"title":"NSCLC","description":"First line","questions":[
	{"question_type":"Intro","question":"What is your role?","section":"Intro","respondents":{"Respondent 1":{"quote":"I lead the thoracic oncology unit.","summary":"Unit lead","theme":"Role"}}},
	{"question_type":"Treatment","question":"Which treatments do you use first-line?","section":"Treatment","respondents":{"Respondent 1":{"quote":"Mostly immunotherapy combinations.","summary":"IO combos","theme":"Immunotherapy"}}}
]}}` + "\n```"

const placeholderReply = `{"content_analysis":{"title":"T","description":"D","questions":[
	{"question_type":"Intro","question":"What is your role?","section":"Intro","respondents":{"Respondent 1":{"quote":"No specific quote available","summary":"","theme":"Role"}}}]}}`

// projectFixture writes a project file and one transcript into a temp dir.
func projectFixture(t *testing.T) (dir, projectFile, transcript string) {
	t.Helper()
	dir = t.TempDir()
	projectFile = writeTestFile(t, dir, "onc-study.yaml", testProjectYAML)
	transcript = writeTestFile(t, dir, "interview1.txt", testTranscript)
	return dir, projectFile, transcript
}
