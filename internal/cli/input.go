package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/guidematrix/internal/lang"
	"github.com/alnah/guidematrix/internal/project"
	"github.com/alnah/guidematrix/internal/schema"
)

// maxParallelReads bounds concurrent transcript reads.
const maxParallelReads = 8

// inputFlags are the flags shared by every command that reads a project
// and its transcripts.
type inputFlags struct {
	projectFile string
	guideFile   string
	kind        string
	language    string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.projectFile, "project", "p", "", "Project file, YAML or JSON (required)")
	cmd.Flags().StringVarP(&f.guideFile, "guide", "g", "", "Discussion guide file, overrides the project's guide_context")
	cmd.Flags().StringVarP(&f.kind, "kind", "k", schema.ContentAnalysis,
		"Analysis kind: "+strings.Join(schema.Names(), ", "))
	cmd.Flags().StringVarP(&f.language, "language", "L", "", "Output language (ISO 639-1 code, e.g. fr), overrides the project's")
	_ = cmd.MarkFlagRequired("project")
}

// inputs is the parsed result of inputFlags plus transcript arguments.
type inputs struct {
	config    project.Config
	documents []project.Document
	kind      schema.Kind
}

// load parses flags and reads every input file. Transcripts are read
// concurrently and keep argument order. Transcripts may be empty.
func (f *inputFlags) load(ctx context.Context, transcripts []string) (inputs, error) {
	kind, err := schema.ParseKind(f.kind)
	if err != nil {
		return inputs{}, err
	}
	if f.language != "" {
		if _, err := lang.Parse(f.language); err != nil {
			return inputs{}, err
		}
	}

	cfg, err := loadProject(f.projectFile)
	if err != nil {
		return inputs{}, err
	}
	if f.guideFile != "" {
		text, err := readInput(f.guideFile)
		if err != nil {
			return inputs{}, err
		}
		cfg.GuideContext = text
	}
	if f.language != "" {
		cfg.OutputLanguage = f.language
	}

	in := inputs{config: cfg, kind: kind}
	if len(transcripts) > 0 {
		if in.documents, err = loadDocuments(ctx, transcripts); err != nil {
			return inputs{}, err
		}
	}
	return in, nil
}

// loadProject reads a project file.
func loadProject(path string) (project.Config, error) {
	if err := checkExists(path); err != nil {
		return project.Config{}, err
	}
	return project.LoadConfig(path)
}

// loadDocuments reads transcript files concurrently.
func loadDocuments(ctx context.Context, paths []string) ([]project.Document, error) {
	if len(paths) == 0 {
		return nil, ErrNoTranscripts
	}

	docs := make([]project.Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := readInput(p)
			if err != nil {
				return err
			}
			docs[i] = project.Document{ID: documentID(p), Content: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// documentID is the file name without its extension.
func documentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func readInput(path string) (string, error) {
	// #nosec G304 -- path is user-provided
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func checkExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access file: %w", err)
	}
	return nil
}
