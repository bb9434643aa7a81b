package study

import (
	"strings"
	"testing"
)

func TestSlugifyFiltersNoiseWords(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Tell me something about the Ark of the Covenant", "ark-of-covenant"},
		{"What is the meaning of Selah?", "meaning-of-selah"},
		{"Who was Melchizedek in the Bible?", "was-melchizedek-bible"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.query); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestSlugifyKeepsShortQueries(t *testing.T) {
	// Three or fewer words bypass noise filtering.
	if got := Slugify("who is God"); got != "who-is-god" {
		t.Errorf("Slugify short query = %q, want who-is-god", got)
	}
	if got := Slugify("the"); got != "the" {
		t.Errorf("Slugify(\"the\") = %q, want the", got)
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	a := Slugify("Tell me about the Exodus from Egypt")
	b := Slugify("Tell me about the Exodus from Egypt")
	if a != b {
		t.Errorf("Slugify not deterministic: %q vs %q", a, b)
	}
}

func TestSlugifyStripsPunctuation(t *testing.T) {
	if got := Slugify("Who was Boaz? (Ruth's redeemer!)"); strings.ContainsAny(got, "?!()'") {
		t.Errorf("punctuation survived: %q", got)
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	long := strings.Repeat("jerusalem ", 20)
	got := Slugify(long)
	if len(got) > 60 {
		t.Errorf("slug length %d exceeds cap", len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slug has trailing dash after truncation: %q", got)
	}
}

func TestSlugifyAllNoiseRefilters(t *testing.T) {
	// Every word is noise; the unfiltered fallback keeps them.
	if got := Slugify("tell me about the what and why"); got == "" || got == "search" {
		t.Errorf("expected refiltered slug, got %q", got)
	}
}

func TestSlugifyEmptyFallsBack(t *testing.T) {
	for _, q := range []string{"", "???", "!!! ***"} {
		if got := Slugify(q); got != "search" {
			t.Errorf("Slugify(%q) = %q, want search", q, got)
		}
	}
}

func TestUniqueSlugNoCollision(t *testing.T) {
	taken := map[string]struct{}{"other-slug": {}}
	if got := UniqueSlug("who is God", taken); got != "who-is-god" {
		t.Errorf("UniqueSlug = %q, want base slug", got)
	}
}

func TestUniqueSlugCollisionAppendsSuffix(t *testing.T) {
	taken := map[string]struct{}{"who-is-god": {}}
	got := UniqueSlug("who is God", taken)
	if !strings.HasPrefix(got, "who-is-god-") {
		t.Fatalf("UniqueSlug = %q, want suffixed base", got)
	}
	suffix := strings.TrimPrefix(got, "who-is-god-")
	if len(suffix) != 4 {
		t.Errorf("suffix %q length = %d, want 4", suffix, len(suffix))
	}
}
