package reconcile

import (
	"github.com/wsmith-bit/itstitanium/pkg/canonical"
	"github.com/wsmith-bit/itstitanium/pkg/inject"
)

// disclosure: whole text -> one disclosure section with the current text.
var disclosureStage = Stage{
	Name: "disclosure",
	Run: func(env *Env, p *Page) error {
		if env.Disclosure == "" {
			return nil
		}
		updated := inject.UpsertDisclosure(p.Doc.Text, env.Disclosure)
		if updated != p.Doc.Text {
			p.Doc.Text = updated
			p.fix(inject.FixDisclosure)
		}
		return nil
	},
}

// faq: index pages -> faqs section lists the FAQ bank.
var faqStage = Stage{
	Name: "faq",
	Run: func(env *Env, p *Page) error {
		if !env.faqReady || !canonical.IsIndex(p.Doc.Rel) {
			return nil
		}
		updated := inject.ReplaceFAQ(p.Doc.Text, inject.FAQHTML(env.FAQ))
		if updated != p.Doc.Text {
			p.Doc.Text = updated
			p.fix(inject.FixFAQ)
		}
		return nil
	},
}
