package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/guide"
	"github.com/alnah/guidematrix/internal/project"
	"github.com/alnah/guidematrix/internal/schema"
	"github.com/alnah/guidematrix/internal/validate"
)

// validateOptions holds the options of the validate command.
type validateOptions struct {
	response    string
	transcripts []string
	kind        string
	guideFile   string
	output      string
	strict      bool
}

// ValidateCmd creates the validate command.
func ValidateCmd(env *Env) *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate <response-file> [transcript]...",
		Short: "Validate and repair a saved model response",
		Long: `Validate and repair a raw model response offline.

The response is stripped of fences and prose, parsed, repaired and completed
to the kind's schema. Unparseable text falls back to a summary holding the
raw response. With a JSON guide, rows are aligned to the guide's questions.
With transcripts, quotes are checked for verbatim presence.`,
		Example: `  guidematrix validate response.txt
  guidematrix validate response.txt -g guide.json interview1.txt -o fixed.json
  guidematrix validate response.txt -k summary`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.response = args[0]
			opts.transcripts = args[1:]
			return runValidate(cmd, env, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", schema.ContentAnalysis,
		"Analysis kind: "+strings.Join(schema.Names(), ", "))
	cmd.Flags().StringVarP(&opts.guideFile, "guide", "g", "", "JSON discussion guide to align rows to")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "Output file path, - for stdout")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail when the result has quality defects")
	return cmd
}

func runValidate(cmd *cobra.Command, env *Env, opts validateOptions) error {
	kind, err := schema.ParseKind(opts.kind)
	if err != nil {
		return err
	}
	raw, err := readInput(opts.response)
	if err != nil {
		return err
	}

	var vopts []validate.Option
	if opts.guideFile != "" {
		text, err := readInput(opts.guideFile)
		if err != nil {
			return err
		}
		g := guide.Extract(project.Config{GuideContext: text}, nil)
		if g.Source != guide.SourceJSON {
			_, _ = fmt.Fprintf(env.Stderr, "Warning: %s is not a JSON guide, rows are not aligned\n", opts.guideFile)
		} else {
			vopts = append(vopts, validate.WithGuide(g))
		}
	}
	if len(opts.transcripts) > 0 {
		docs, err := loadDocuments(cmd.Context(), opts.transcripts)
		if err != nil {
			return err
		}
		vopts = append(vopts, validate.WithTranscripts(docs))
	}

	res := validate.Validate(raw, kind, vopts...)
	reportResult(env.Stderr, res)
	if opts.strict && len(res.Defects) > 0 {
		return fmt.Errorf("%w: %d defects", analysis.ErrQualityRejected, len(res.Defects))
	}

	content, err := marshalIndent(res.Document)
	if err != nil {
		return err
	}
	return writeOutput(env, opts.output, content)
}
