// Package reconcile drives documents through a declared list of stages and
// collects what each stage fixed or flagged.
package reconcile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/wsmith-bit/itstitanium/pkg/canonical"
	"github.com/wsmith-bit/itstitanium/pkg/document"
	"github.com/wsmith-bit/itstitanium/pkg/images"
	"github.com/wsmith-bit/itstitanium/pkg/jsonld"
	"github.com/wsmith-bit/itstitanium/pkg/signals"
)

// ErrSkip stops the remaining stages for a document without writing it.
var ErrSkip = errors.New("document skipped")

// Values a stage can provide or need.
const (
	ValueHead        = "head"
	ValueSignals     = "signals"
	ValueCanonical   = "canonical"
	ValueTitle       = "title"
	ValueDescription = "description"
	ValueImage       = "image"
	ValueDates       = "dates"
)

// Page is the working state of one document while it moves through a pipeline.
type Page struct {
	Doc *document.Document

	// Inner is the head inner content being edited; it is spliced back into
	// Doc by the commit stage.
	Inner string
	head  document.Head

	Signals     *signals.Page
	Record      canonical.Record
	Title       string
	Description string
	Image       *images.Primary
	Prior       jsonld.Dates

	Fixes    []string
	Warnings []string
}

func (p *Page) fix(msg string) {
	p.Fixes = append(p.Fixes, msg)
}

func (p *Page) warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Stage is one named step. Needs lists values earlier stages must provide.
type Stage struct {
	Name     string
	Needs    []string
	Provides []string
	Run      func(env *Env, p *Page) error
}

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// Validate checks that every stage's needs are provided by an earlier stage.
func (pl Pipeline) Validate() error {
	have := map[string]bool{}
	for _, s := range pl {
		for _, need := range s.Needs {
			if !have[need] {
				return fmt.Errorf("stage %q needs %q, which no earlier stage provides", s.Name, need)
			}
		}
		for _, v := range s.Provides {
			have[v] = true
		}
	}
	return nil
}

// Apply runs the stages over p in order. ErrSkip and stage errors stop the
// remaining stages; the error is returned for the caller to record.
func (pl Pipeline) Apply(env *Env, p *Page) error {
	for _, s := range pl {
		if err := s.Run(env, p); err != nil {
			if errors.Is(err, ErrSkip) {
				return err
			}
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}

// Names lists the stage names in order.
func (pl Pipeline) Names() []string {
	names := make([]string, len(pl))
	for i, s := range pl {
		names[i] = s.Name
	}
	return names
}

// Includes reports whether pl has a stage with the given name.
func (pl Pipeline) Includes(name string) bool {
	return slices.Contains(pl.Names(), name)
}

// EnforcePipeline is the full alignment pass.
func EnforcePipeline() Pipeline {
	return Pipeline{
		domainStage,
		headStage,
		signalsStage,
		canonicalStage,
		titleStage,
		descriptionStage,
		robotsStage,
		imageStage,
		openGraphStage,
		twitterStage,
		jsonLDStage,
		commitStage,
		progressStage,
		siteScriptStage,
		imagesStage,
	}
}

// HeadAssetsPipeline refreshes icons and social tags without touching the
// structured-data graph or the page header.
func HeadAssetsPipeline() Pipeline {
	return Pipeline{
		headStage,
		signalsStage,
		iconsStage,
		canonicalStage,
		titleStage,
		robotsStage,
		descriptionStage,
		imageStage,
		openGraphStage,
		twitterStage,
		commitStage,
		imagesStage,
		siteScriptStage,
	}
}

// InjectPipeline syncs the disclosure and FAQ widgets in the page body.
func InjectPipeline() Pipeline {
	return Pipeline{
		disclosureStage,
		faqStage,
	}
}
