package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSiteFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write site file: %v", err)
	}
	return path
}

func TestLoadSite(t *testing.T) {
	path := writeSiteFile(t, `
pages:
  "https://shop.test/":
    title: Shop
    content: Welcome to the shop.
    links:
      a.pricing: "https://shop.test/pricing"
  "https://shop.test/pricing":
    title: Pricing
    content: "Basic plan: $10/month."
`)

	pages, err := LoadSite(path)
	if err != nil {
		t.Fatalf("LoadSite: %v", err)
	}

	if len(pages) != 2 {
		t.Fatalf("len(pages) = %d, want 2", len(pages))
	}
	home := pages["https://shop.test/"]
	if home == nil {
		t.Fatal("home page missing")
	}
	if home.Title != "Shop" {
		t.Errorf("title = %q, want Shop", home.Title)
	}
	if home.Links["a.pricing"] != "https://shop.test/pricing" {
		t.Errorf("links = %v", home.Links)
	}
}

func TestLoadSite_DrivesScriptedDriver(t *testing.T) {
	path := writeSiteFile(t, `
pages:
  "https://docs.test/":
    title: Docs
    content: Read the manual.
`)

	pages, err := LoadSite(path)
	if err != nil {
		t.Fatalf("LoadSite: %v", err)
	}

	d := NewScriptedDriver(pages)
	if _, err := d.Perform(context.Background(), Action{Type: ActionNavigate, URL: "https://docs.test/"}); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	state, err := d.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Title != "Docs" {
		t.Errorf("title = %q, want Docs", state.Title)
	}
}

func TestLoadSite_Empty(t *testing.T) {
	path := writeSiteFile(t, "pages: {}\n")

	_, err := LoadSite(path)
	if !errors.Is(err, ErrEmptySite) {
		t.Errorf("error = %v, want ErrEmptySite", err)
	}
}

func TestLoadSite_MissingFile(t *testing.T) {
	_, err := LoadSite(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadSite_InvalidYAML(t *testing.T) {
	path := writeSiteFile(t, "pages: [broken\n")

	_, err := LoadSite(path)
	if err == nil {
		t.Error("expected an error for invalid YAML")
	}
}
