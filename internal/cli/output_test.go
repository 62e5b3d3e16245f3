package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/schema"
	"github.com/alnah/guidematrix/internal/validate"
)

// ---------------------------------------------------------------------------
// TestWarnNonJSONExtension - Extension warning logic
// ---------------------------------------------------------------------------

func TestWarnNonJSONExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		wantWarning bool
	}{
		{name: "json lowercase", path: "matrix.json"},
		{name: "json uppercase", path: "/out/matrix.JSON"},
		{name: "no extension", path: "matrix"},
		{name: "markdown", path: "matrix.md", wantWarning: true},
		{name: "csv", path: "matrix.csv", wantWarning: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			warnNonJSONExtension(&buf, tt.path)
			if got := buf.Len() > 0; got != tt.wantWarning {
				t.Errorf("warnNonJSONExtension(%q) warned = %v, want %v (%q)", tt.path, got, tt.wantWarning, buf.String())
			}
			if tt.wantWarning && !strings.Contains(buf.String(), filepath.Ext(tt.path)) {
				t.Errorf("warning should name the extension: %q", buf.String())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWriteFileAtomic
// ---------------------------------------------------------------------------

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	t.Run("writes new file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out.json")
		if err := writeFileAtomic(path, "{}\n"); err != nil {
			t.Fatalf("writeFileAtomic() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil || string(data) != "{}\n" {
			t.Errorf("content = %q, err = %v", data, err)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, t.TempDir(), "out.json", "old")
		err := writeFileAtomic(path, "new")
		if !errors.Is(err, ErrOutputExists) {
			t.Fatalf("writeFileAtomic() error = %v, want ErrOutputExists", err)
		}
		if data, _ := os.ReadFile(path); string(data) != "old" {
			t.Errorf("existing file modified: %q", data)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		err := writeFileAtomic(filepath.Join(t.TempDir(), "nope", "out.json"), "x")
		if err == nil || errors.Is(err, ErrOutputExists) {
			t.Errorf("writeFileAtomic() error = %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// TestProgressPrinter / TestReportResult
// ---------------------------------------------------------------------------

func TestProgressPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	emit := progressPrinter(&buf)
	emit(analysis.Event{Phase: analysis.PhaseInvokingModel, At: time.Now()})
	emit(analysis.Event{Phase: analysis.PhasePersisted, Detail: "version 3"})
	emit(analysis.Event{Phase: "custom"})

	want := "  Calling model...\n  Saved (version 3)\n  custom...\n"
	if got := buf.String(); got != want {
		t.Errorf("progress = %q, want %q", got, want)
	}
}

func TestReportResult(t *testing.T) {
	t.Parallel()

	res := validate.Validate(placeholderReply, schema.ContentAnalysisKind)
	var buf bytes.Buffer
	reportResult(&buf, res)

	out := buf.String()
	if !strings.HasPrefix(out, "Status: ") || !strings.Contains(out, "(1 question, 1 answer)\n") {
		t.Errorf("report header = %q", out)
	}
	if !strings.Contains(out, "defect: ") {
		t.Errorf("report should list defects: %q", out)
	}
}
