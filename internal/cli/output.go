package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/format"
	"github.com/alnah/guidematrix/internal/validate"
)

// warnNonJSONExtension writes a warning to w if path has an extension
// that is not .json.
func warnNonJSONExtension(w io.Writer, path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" && ext != ".json" {
		_, _ = fmt.Fprintf(w, "Warning: output is JSON regardless of %s extension\n", ext)
	}
}

// progressPrinter returns an event callback that writes one status line
// per phase to w.
func progressPrinter(w io.Writer) analysis.EventFunc {
	return func(e analysis.Event) {
		var msg string
		switch e.Phase {
		case analysis.PhaseInputChecked:
			msg = "Checked input"
		case analysis.PhaseGuideExtracted:
			msg = "Extracted guide"
		case analysis.PhaseSpeakersDetected:
			msg = "Detected speakers"
		case analysis.PhasePromptComposed:
			msg = "Composed prompt"
		case analysis.PhaseInvokingModel:
			msg = "Calling model"
		case analysis.PhaseValidating:
			msg = "Validating response"
		case analysis.PhasePersisted:
			msg = "Saved"
		default:
			msg = string(e.Phase)
		}
		if e.Detail != "" {
			_, _ = fmt.Fprintf(w, "  %s (%s)\n", msg, e.Detail)
			return
		}
		_, _ = fmt.Fprintf(w, "  %s...\n", msg)
	}
}

// reportResult writes the validation status, repairs and defects to w.
func reportResult(w io.Writer, res validate.Result) {
	_, _ = fmt.Fprintf(w, "Status: %s", res.Status)
	if res.Matrix != nil {
		_, _ = fmt.Fprintf(w, " (%s, %s)",
			format.Count(len(res.Matrix.Rows), "question", "questions"),
			format.Count(res.Matrix.CellCount(), "answer", "answers"))
	}
	_, _ = fmt.Fprintln(w)
	for _, r := range res.Repairs {
		_, _ = fmt.Fprintf(w, "  repaired: %s\n", r)
	}
	for _, d := range res.Defects {
		_, _ = fmt.Fprintf(w, "  defect: %s\n", format.Truncate(d.String(), 200))
	}
}

// marshalIndent renders v as indented JSON with a trailing newline.
func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode output: %w", err)
	}
	return string(data) + "\n", nil
}

// writeOutput writes content to stdout when path is "-", else to a new file.
func writeOutput(env *Env, path, content string) error {
	if path == "-" {
		_, err := io.WriteString(env.Stdout, content)
		return err
	}
	warnNonJSONExtension(env.Stderr, path)
	return writeFileAtomic(path, content)
}

// writeFileAtomic writes content to path atomically.
// It fails if the file already exists (O_EXCL), preventing accidental overwrites.
// On write failure, the partial file is removed.
func writeFileAtomic(path, content string) error {
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("output file already exists: %s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(content); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}

	return nil
}
