// Package models defines data structures for configuration and run records.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultConfigName = "sitealign.yaml"

// Icon is a favicon/touch icon candidate. It is only linked when the asset exists.
type Icon struct {
	Rel   string `yaml:"rel"`
	Type  string `yaml:"type,omitempty"`
	Sizes string `yaml:"sizes,omitempty"`
	Href  string `yaml:"href"`
}

// SiteConfig holds the recognized-options table for a site.
// Relative paths are resolved against Root by Resolve.
type SiteConfig struct {
	Root string `yaml:"-"`

	Origin     string `yaml:"origin"`
	SiteName   string `yaml:"site_name"`
	Language   string `yaml:"language"`
	PublicDir  string `yaml:"public_dir"`
	Template   string `yaml:"template"`
	FAQBank    string `yaml:"faq_bank"`
	Disclosure string `yaml:"disclosure"`
	Affiliates string `yaml:"affiliate_domains"`
	AltMap     string `yaml:"alt_map"`
	LogPath    string `yaml:"log_path"`
	HistoryDB  string `yaml:"history_db"`

	FallbackImage      string   `yaml:"fallback_image"`
	ImageAlt           string   `yaml:"image_alt"`
	DefaultTitle       string   `yaml:"default_title"`
	DefaultDescription string   `yaml:"default_description"`
	HowToName          string   `yaml:"howto_name"`
	TypoDomains        []string `yaml:"typo_domains"`
	Icons              []Icon   `yaml:"icons"`

	Workers        int  `yaml:"workers"`
	CheckAssets    bool `yaml:"check_assets"`
	TitleMin       int  `yaml:"title_min"`
	TitleMax       int  `yaml:"title_max"`
	DescriptionMax int  `yaml:"description_max"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() *SiteConfig {
	return &SiteConfig{
		Origin:             "https://itstitanium.com",
		SiteName:           "It’s Titanium",
		Language:           "en-US",
		PublicDir:          "public",
		Template:           "data/templates/kg-template.jsonld",
		FAQBank:            "data/faq-bank.json",
		Disclosure:         "docs/disclosure.txt",
		Affiliates:         "data/affiliate-domains.json",
		AltMap:             "public/assets/img/alts.json",
		LogPath:            "scripts/.align-log.json",
		HistoryDB:          "scripts/.align-history.db",
		FallbackImage:      "/assets/img/itstitaniun-hero-og-1200x630.webp",
		ImageAlt:           "Titanium cookware hero image",
		DefaultTitle:       "It’s Titanium",
		DefaultDescription: "Titanium cookware guidance",
		HowToName:          "Care and cleaning routine for titanium cookware",
		TypoDomains:        []string{"https://itstitaniun.com"},
		Icons: []Icon{
			{Rel: "icon", Type: "image/png", Sizes: "32x32", Href: "/assets/img/brand/itstitaniun-logo-32.png"},
			{Rel: "icon", Type: "image/png", Sizes: "192x192", Href: "/assets/img/brand/itstitaniun-logo-192.png"},
			{Rel: "apple-touch-icon", Sizes: "180x180", Href: "/assets/img/brand/itstitaniun-apple-touch-180.png"},
		},
		Workers:        4,
		CheckAssets:    true,
		TitleMin:       35,
		TitleMax:       65,
		DescriptionMax: 165,
	}
}

// LoadConfig reads a YAML config on top of the defaults. A missing file is not an error.
func LoadConfig(path string) (*SiteConfig, error) {
	cfg := DefaultConfig()
	cfg.Root = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate normalizes the origin and fills zero values that would break a run.
func (c *SiteConfig) Validate() error {
	c.Origin = strings.TrimRight(strings.TrimSpace(c.Origin), "/")
	if !strings.HasPrefix(c.Origin, "http://") && !strings.HasPrefix(c.Origin, "https://") {
		return fmt.Errorf("origin must be an absolute http(s) URL, got %q", c.Origin)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.PublicDir == "" {
		c.PublicDir = "public"
	}
	return nil
}

// Resolve returns p relative to the config root unless it is already absolute.
func (c *SiteConfig) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// PublicRoot is the absolute or root-relative path of the document tree.
func (c *SiteConfig) PublicRoot() string {
	return c.Resolve(c.PublicDir)
}
