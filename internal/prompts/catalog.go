// Package prompts holds the per-language prompt catalog: intent
// category descriptions with few-shot examples, answer templates, and
// character-genre tone instructions.
package prompts

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type IntentCategory struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Examples    []string `yaml:"examples"`
}

type Section struct {
	Intents   []IntentCategory  `yaml:"intents"`
	Templates map[string]string `yaml:"templates"`
	Genres    map[string]string `yaml:"genres"`
}

type Catalog struct {
	DefaultLanguage string             `yaml:"default_language"`
	Languages       map[string]Section `yaml:"languages"`
}

// Load parses the embedded catalog. Missing default-language section is
// a packaging error and fails loudly at startup.
func Load() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	if _, ok := c.Languages[c.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("prompt catalog missing default language section %q", c.DefaultLanguage)
	}
	return &c, nil
}

func (c *Catalog) section(lang string) Section {
	if s, ok := c.Languages[lang]; ok {
		return s
	}
	return c.Languages[c.DefaultLanguage]
}

// IntentCategories returns the classification categories for a language,
// falling back to the default language section.
func (c *Catalog) IntentCategories(lang string) []IntentCategory {
	return c.section(lang).Intents
}

// Template returns a named answer template, falling back first to the
// default language and then to an empty string.
func (c *Catalog) Template(lang, name string) string {
	if t, ok := c.section(lang).Templates[name]; ok {
		return t
	}
	if t, ok := c.Languages[c.DefaultLanguage].Templates[name]; ok {
		return t
	}
	return ""
}

// GenreTone returns the tone instruction for a character genre, empty
// when the genre is unknown.
func (c *Catalog) GenreTone(lang, genre string) string {
	if genre == "" {
		return ""
	}
	if t, ok := c.section(lang).Genres[genre]; ok {
		return t
	}
	if t, ok := c.Languages[c.DefaultLanguage].Genres[genre]; ok {
		return t
	}
	return ""
}
