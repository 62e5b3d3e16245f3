package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/format"
	"github.com/alnah/guidematrix/internal/guide"
	"github.com/alnah/guidematrix/internal/speaker"
)

// The commands in this file run the deterministic steps of an analysis
// without calling the model.

// GuideCmd creates the guide command.
func GuideCmd(env *Env) *cobra.Command {
	var (
		in   inputFlags
		text bool
	)

	cmd := &cobra.Command{
		Use:   "guide [transcript]...",
		Short: "Show the discussion guide structure an analysis would use",
		Long: `Show the discussion guide structure extracted for a project.

A JSON guide is parsed as is. A free-text guide is passed through. Without
a guide, sections and questions are inferred from the transcripts, and
without transcripts a default skeleton is used.`,
		Example: `  guidematrix guide -p project.yaml
  guidematrix guide -p project.yaml --text interview1.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuide(cmd, env, in, args, text)
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&text, "text", false, "Print the guide block of the prompt instead of JSON")
	return cmd
}

func runGuide(cmd *cobra.Command, env *Env, flags inputFlags, transcripts []string, text bool) error {
	in, err := flags.load(cmd.Context(), transcripts)
	if err != nil {
		return err
	}

	g := guide.Extract(in.config, in.documents)
	_, _ = fmt.Fprintf(env.Stderr, "Guide source: %s (%s, %s)\n", g.Source,
		format.Count(len(g.Sections), "section", "sections"),
		format.Count(len(g.Questions()), "question", "questions"))

	if text {
		_, err := fmt.Fprint(env.Stdout, g.Summary())
		return err
	}
	content, err := marshalIndent(g)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(env.Stdout, content)
	return err
}

// SpeakersCmd creates the speakers command.
func SpeakersCmd(env *Env) *cobra.Command {
	var text bool

	cmd := &cobra.Command{
		Use:   "speakers <transcript>...",
		Short: "Show speaker labels and profile facts detected in transcripts",
		Example: `  guidematrix speakers interview1.txt interview2.txt
  guidematrix speakers --text interview1.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpeakers(cmd, env, args, text)
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "Print the hints block of the prompt instead of JSON")
	return cmd
}

// speakersView is the JSON shape of detected hints.
type speakersView struct {
	Speakers []string `json:"speakers"`
	Profiles []string `json:"profiles"`
}

func runSpeakers(cmd *cobra.Command, env *Env, transcripts []string, text bool) error {
	docs, err := loadDocuments(cmd.Context(), transcripts)
	if err != nil {
		return err
	}

	hints := speaker.DetectAll(docs)
	if text {
		_, err := fmt.Fprint(env.Stdout, hints.Render())
		return err
	}
	content, err := marshalIndent(speakersView{
		Speakers: nonNil(hints.Speakers),
		Profiles: nonNil(hints.Profiles),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(env.Stdout, content)
	return err
}

// PromptCmd creates the prompt command.
func PromptCmd(env *Env) *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "prompt <transcript>...",
		Short: "Print the prompt an analysis would send to the model",
		Example: `  guidematrix prompt -p project.yaml interview1.txt > prompt.txt
  guidematrix prompt -p project.yaml -k fmr_dish -L de interview1.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompt(cmd, env, in, args)
		},
	}
	in.register(cmd)
	return cmd
}

func runPrompt(cmd *cobra.Command, env *Env, flags inputFlags, transcripts []string) error {
	in, err := flags.load(cmd.Context(), transcripts)
	if err != nil {
		return err
	}

	p, err := analysis.Prepare(analysis.Request{
		Kind:      in.kind,
		Config:    in.config,
		Documents: in.documents,
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Stderr, "Prompt: %s, %s, guide %s\n",
		format.Count(len(p.Prompt), "character", "characters"),
		format.Count(len(p.Documents), "transcript", "transcripts"),
		p.Guide.Source)
	_, err = fmt.Fprint(env.Stdout, p.Prompt)
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
