package study

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// noiseWords are dropped from slugs when the query is long enough to keep
// its meaning without them.
var noiseWords = map[string]struct{}{
	"tell": {}, "me": {}, "something": {}, "about": {}, "can": {}, "you": {},
	"please": {}, "what": {}, "is": {}, "are": {}, "who": {}, "where": {},
	"when": {}, "why": {}, "how": {}, "the": {}, "a": {}, "an": {}, "and": {},
	"or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
}

var (
	nonSlugChars = regexp.MustCompile(`[^\w\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	dashRuns     = regexp.MustCompile(`-+`)
	trailingDash = regexp.MustCompile(`-+$`)
)

const maxSlugLen = 60

// Slugify derives a deterministic URL slug from a search query. Noise words
// are dropped unless the query has three or fewer words, so short queries
// like "who is God" survive intact.
func Slugify(query string) string {
	words := strings.Fields(strings.TrimSpace(query))

	kept := words
	if len(words) > 3 {
		kept = make([]string, 0, len(words))
		for _, w := range words {
			if _, noise := noiseWords[strings.ToLower(w)]; !noise {
				kept = append(kept, w)
			}
		}
	}

	slug := buildSlug(kept)
	if slug == "" {
		// Everything was filtered out; fall back to the full query.
		slug = buildSlug(words)
	}
	if slug == "" {
		return "search"
	}

	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return trailingDash.ReplaceAllString(slug, "")
}

func buildSlug(words []string) string {
	s := strings.ToLower(strings.Join(words, " "))
	s = nonSlugChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// UniqueSlug returns a slug for query that does not collide with taken.
// On collision a short random suffix is appended; the suffixed candidate is
// re-checked once. A residual collision surfaces as a unique-index violation
// at insert time, which callers retry with a fresh suffix.
func UniqueSlug(query string, taken map[string]struct{}) string {
	slug := Slugify(query)
	if _, exists := taken[slug]; !exists {
		return slug
	}

	candidate := slug + "-" + randomSuffix()
	if _, exists := taken[candidate]; exists {
		candidate = slug + "-" + randomSuffix()
	}
	return candidate
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:4]
}
