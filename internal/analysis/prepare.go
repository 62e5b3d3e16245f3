package analysis

import (
	"fmt"

	"github.com/alnah/guidematrix/internal/guide"
	"github.com/alnah/guidematrix/internal/lang"
	"github.com/alnah/guidematrix/internal/project"
	"github.com/alnah/guidematrix/internal/prompt"
	"github.com/alnah/guidematrix/internal/speaker"
)

// CheckInput validates run inputs. Blank documents are tolerated as long as
// at least one has text.
func CheckInput(cfg project.Config, docs []project.Document) error {
	if cfg.IsBlank() {
		return ErrMissingConfig
	}
	if len(docs) == 0 {
		return ErrNoDocuments
	}
	for _, d := range docs {
		if !d.IsBlank() {
			return nil
		}
	}
	return fmt.Errorf("%w: %d documents", ErrEmptyDocuments, len(docs))
}

// Prepare checks the inputs and derives guide, speaker hints and prompt
// without calling the model.
func Prepare(req Request) (Prepared, error) {
	if err := CheckInput(req.Config, req.Documents); err != nil {
		return Prepared{}, err
	}
	return prepare(req, func(Phase, string) {})
}

func prepare(req Request, emit func(Phase, string)) (Prepared, error) {
	language, err := lang.Parse(req.Config.OutputLanguage)
	if err != nil {
		return Prepared{}, fmt.Errorf("output language: %w", err)
	}

	p := Prepared{
		Kind:      req.Kind.OrDefault(),
		Documents: nonBlank(req.Documents),
		Language:  language,
	}

	p.Guide = guide.Extract(req.Config, p.Documents)
	emit(PhaseGuideExtracted, fmt.Sprintf("%s, %d questions", p.Guide.Source, len(p.Guide.Questions())))

	p.Hints = speaker.DetectAll(p.Documents)
	emit(PhaseSpeakersDetected, fmt.Sprintf("%d speakers, %d profiles", len(p.Hints.Speakers), len(p.Hints.Profiles)))

	p.Prompt = prompt.Compose(prompt.Input{
		Config:    req.Config,
		Guide:     p.Guide,
		Hints:     p.Hints,
		Documents: p.Documents,
		Kind:      p.Kind,
		Language:  p.Language,
	})
	emit(PhasePromptComposed, fmt.Sprintf("%d chars", len(p.Prompt)))
	return p, nil
}

func nonBlank(docs []project.Document) []project.Document {
	out := make([]project.Document, 0, len(docs))
	for _, d := range docs {
		if !d.IsBlank() {
			out = append(out, d)
		}
	}
	return out
}
