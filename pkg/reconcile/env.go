package reconcile

import (
	"log/slog"
	"time"

	"github.com/wsmith-bit/itstitanium/models"
	"github.com/wsmith-bit/itstitanium/pkg/images"
	"github.com/wsmith-bit/itstitanium/pkg/inject"
	"github.com/wsmith-bit/itstitanium/pkg/jsonld"
	"github.com/wsmith-bit/itstitanium/pkg/storage"
)

// Env holds the read-only inputs shared by every document of a run.
type Env struct {
	Config  *models.SiteConfig
	Store   *storage.Storage
	Builder *jsonld.Builder // nil disables the graph stage
	FAQ     []models.FAQEntry
	Today   string

	// Disclosure is the rendered disclosure section; empty disables it.
	Disclosure string
	faqReady   bool

	Logger *slog.Logger

	// Errors are problems with auxiliary inputs. They disable the affected
	// feature and make the run exit non-zero.
	Errors []error
}

// NewEnv loads the auxiliary inputs pl uses: the template for the graph
// stage, the FAQ bank for the graph and FAQ stages. Broken inputs are logged
// and recorded in Errors rather than returned.
func NewEnv(cfg *models.SiteConfig, logger *slog.Logger, pl Pipeline) *Env {
	env := &Env{
		Config: cfg,
		Store:  storage.New(cfg.PublicRoot()),
		Today:  time.Now().Format(jsonld.DateLayout),
		Logger: logger,
	}

	if pl.Includes(jsonLDStage.Name) {
		tmpl, err := jsonld.LoadTemplate(cfg.Resolve(cfg.Template))
		if err != nil {
			logger.Error("JSON-LD template unusable, graph stage disabled", "path", cfg.Template, "error", err)
			env.Errors = append(env.Errors, err)
		} else {
			env.Builder = &jsonld.Builder{
				Origin:    cfg.Origin,
				SiteName:  cfg.SiteName,
				Language:  cfg.Language,
				HowToName: cfg.HowToName,
				Template:  tmpl,
			}
		}
	}

	if pl.Includes(jsonLDStage.Name) || pl.Includes(faqStage.Name) {
		faq, err := jsonld.LoadFAQ(cfg.Resolve(cfg.FAQBank))
		if err != nil {
			logger.Error("Failed to parse FAQ bank, continuing without FAQ", "path", cfg.FAQBank, "error", err)
			env.Errors = append(env.Errors, err)
		} else {
			env.FAQ = faq
			env.faqReady = true
		}
	}
	return env
}

// LoadDisclosure reads the disclosure text named by the config.
func (env *Env) LoadDisclosure() {
	text, err := inject.LoadDisclosure(env.Config.Resolve(env.Config.Disclosure))
	if err != nil {
		env.Logger.Error("Disclosure unavailable, disclosure stage disabled", "path", env.Config.Disclosure, "error", err)
		env.Errors = append(env.Errors, err)
		return
	}
	env.Disclosure = inject.DisclosureHTML(text)
}

// Resolver returns the primary-image resolver for this site.
func (env *Env) Resolver() images.Resolver {
	r := images.Resolver{Origin: env.Config.Origin, Fallback: env.Config.FallbackImage}
	if env.Config.CheckAssets {
		r.Exists = env.Store.HasFile
	}
	return r
}
