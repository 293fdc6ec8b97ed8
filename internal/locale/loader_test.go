package locale

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/circademic/gradetrack/internal/apperr"
)

func TestBuiltinBundles(t *testing.T) {
	loader, err := NewLoader("he")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	codes := loader.List()
	if len(codes) < 2 || codes[0] != "he" {
		t.Fatalf("expected default bundle first, got %v", codes)
	}

	for _, code := range codes {
		b := loader.Get(code)
		if len(b.CSVHeaders) != 7 {
			t.Errorf("%s: expected 7 csv headers, got %d", code, len(b.CSVHeaders))
		}
		if len(b.Categories) != 4 {
			t.Errorf("%s: expected 4 default categories, got %d", code, len(b.Categories))
		}
		if len(b.YearLabels) != 6 {
			t.Errorf("%s: expected 6 year labels, got %d", code, len(b.YearLabels))
		}
	}

	he := loader.Get("he")
	if he.YearLabels[0] != "א'" {
		t.Errorf("unexpected first year label %q", he.YearLabels[0])
	}
	if he.CSVHeaders[1] != `נ"ז` {
		t.Errorf("unexpected credits header %q", he.CSVHeaders[1])
	}
}

func TestMessageFallback(t *testing.T) {
	loader, err := NewLoader("en")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	en := loader.Default()

	if got := en.Message(apperr.CodeEmailInUse); got != "This email is already in use" {
		t.Errorf("unexpected message %q", got)
	}
	if got := en.Message("auth/some-new-code"); got != en.FallbackMessage {
		t.Errorf("unmapped code should use fallback, got %q", got)
	}
	if got := en.Notice("course_added"); got != "Course added!" {
		t.Errorf("unexpected notice %q", got)
	}
	if got := en.Semester(3); got != "Semester 3" {
		t.Errorf("unexpected semester label %q", got)
	}
}

func TestMatch(t *testing.T) {
	loader, err := NewLoader("he")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	tests := []struct {
		header string
		want   string
	}{
		{"", "he"},
		{"en", "en"},
		{"en-US,en;q=0.9", "en"},
		{"he-IL,he;q=0.9,en;q=0.5", "he"},
		{"fr-FR", "he"},
		{"not a header ;;", "he"},
	}

	for _, tt := range tests {
		if got := loader.Match(tt.header); got.Code != tt.want {
			t.Errorf("Match(%q) = %s, want %s", tt.header, got.Code, tt.want)
		}
	}
}

func TestLoadFromDirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	content := `
code: en
name: English (custom)
fallback_message: Oops
categories: [core, optional]
csv_headers: [a, b, c, d, e, f, g]
year_labels: [freshman, sophomore, junior, senior]
`
	if err := os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// Invalid bundles are skipped, not fatal
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("code: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader, err := NewLoader("he")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	en := loader.Get("en")
	if en.Name != "English (custom)" || en.FallbackMessage != "Oops" {
		t.Errorf("bundle not overridden: %+v", en)
	}
	if len(en.Categories) != 2 || en.Categories[0] != "core" {
		t.Errorf("unexpected categories %v", en.Categories)
	}
	if got := en.Message(apperr.CodeEmailInUse); got != "Oops" {
		t.Errorf("expected fallback for missing messages, got %q", got)
	}
}

func TestAddRejectsIncompleteBundles(t *testing.T) {
	loader, err := NewLoader("he")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	bad := []string{
		"name: nameless\nfallback_message: x\ncategories: [a]\n",
		"code: de\ncategories: [a]\n",
		"code: de\nfallback_message: x\n",
		"code: '!!'\nfallback_message: x\ncategories: [a]\n",
	}
	for _, data := range bad {
		if err := loader.Add([]byte(data)); err == nil {
			t.Errorf("expected error for bundle:\n%s", data)
		}
	}
}

func TestNewLoaderUnknownDefault(t *testing.T) {
	if _, err := NewLoader("xx"); err == nil {
		t.Fatal("expected error for unknown default locale")
	}
}
