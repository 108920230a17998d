package help

const ColdstartYAML = `# sitealign Quick Start

commands:
  align_everything: |
    sitealign enforce

  preview_only: |
    sitealign enforce --dry-run

  icons_and_social_tags: |
    sitealign head-assets

  disclosure_and_faq: |
    sitealign inject

  state_of_alignment: |
    sitealign report
    sitealign report --format yaml

  content_checks: |
    sitealign lint
    sitealign lint --check json --check affiliate-rel

  history: |
    sitealign runs
    sitealign runs --tool enforce --limit 5
    sitealign runs show <run-id>
    sitealign runs drift

  keep_aligned_while_editing: |
    sitealign watch --debounce 1s

key_files:
  - "sitealign.yaml (site config; defaults apply when missing)"
  - "data/templates/kg-template.jsonld (Organization and WebSite nodes)"
  - "data/faq-bank.json (FAQ entries for the root page and index pages)"
  - "docs/disclosure.txt (affiliate disclosure text)"
  - "scripts/.align-log.json (last run of each tool)"
  - "scripts/.align-history.db (run history, SQLite)"

invariants:
  - "A second run over unchanged input changes nothing"
  - "Existing description and robots values are never overwritten"
  - "datePublished is carried forward from the existing JSON-LD"
  - "Documents without a <head> are skipped, never rewritten"

exit_codes:
  - "0: aligned, no warnings"
  - "1: warnings, lint issues or broken auxiliary inputs"
  - "2: fatal setup error (config, public dir)"
`
