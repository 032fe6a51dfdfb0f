package prompts

import "testing"

func TestLoadParsesEmbeddedCatalog(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cats := c.IntentCategories("en")
	if len(cats) != 4 {
		t.Fatalf("expected 4 intent categories, got %d", len(cats))
	}
	names := map[string]bool{}
	for _, cat := range cats {
		if cat.Description == "" {
			t.Fatalf("category %q has empty description", cat.Name)
		}
		if len(cat.Examples) == 0 {
			t.Fatalf("category %q has no examples", cat.Name)
		}
		names[cat.Name] = true
	}
	for _, want := range []string{"general_chat", "document_list", "detailed", "follow_up_summary"} {
		if !names[want] {
			t.Fatalf("missing intent category %q", want)
		}
	}
}

func TestTemplateFallsBackToDefaultLanguage(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := c.Template("ko", "upload_first"); got == "" {
		t.Fatalf("expected korean upload_first template")
	}
	// Unknown language falls back to the default section.
	if got := c.Template("fr", "upload_first"); got != c.Template("en", "upload_first") {
		t.Fatalf("expected fallback to default language, got %q", got)
	}
	if got := c.Template("en", "nonexistent"); got != "" {
		t.Fatalf("expected empty template for unknown name, got %q", got)
	}
}

func TestGenreTone(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := c.GenreTone("en", "fantasy"); got == "" {
		t.Fatalf("expected fantasy tone instruction")
	}
	if got := c.GenreTone("en", ""); got != "" {
		t.Fatalf("expected empty tone for empty genre, got %q", got)
	}
	if got := c.GenreTone("en", "unknown-genre"); got != "" {
		t.Fatalf("expected empty tone for unknown genre, got %q", got)
	}
}
