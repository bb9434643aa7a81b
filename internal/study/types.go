// Package study holds the Bible-study domain: the structured answer payload,
// its JSON schema, the generation prompts, and the slug allocator.
package study

// KeyTerm is a term/definition pair surfaced by an answer.
type KeyTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// ScriptureReference is a cited passage with its text.
type ScriptureReference struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
}

// OriginalWord is a Hebrew/Greek/Aramaic word study entry.
type OriginalWord struct {
	Word            string `json:"word"`
	Original        string `json:"original"` // The Greek or Hebrew characters
	Transliteration string `json:"transliteration"`
	Language        string `json:"language"` // "Hebrew", "Greek", "Aramaic"
	Definition      string `json:"definition"`
	Usage           string `json:"usage"`
}

// InterlinearWord is a single word of an interlinear rendering.
type InterlinearWord struct {
	Original        string `json:"original"`
	Transliteration string `json:"transliteration"`
	English         string `json:"english"`
	PartOfSpeech    string `json:"partOfSpeech"`
}

// InterlinearData is a word-by-word rendering of a verse.
type InterlinearData struct {
	Reference string            `json:"reference"`
	Language  string            `json:"language"`
	Words     []InterlinearWord `json:"words"`
}

// Commentary is a synthesized commentary excerpt.
type Commentary struct {
	Source    string `json:"source"` // e.g. "Rashi", "Matthew Henry"
	Text      string `json:"text"`
	Tradition string `json:"tradition"` // "Jewish", "Christian", "Historical"
}

// BookStats is a per-book frequency count for the studied topic.
type BookStats struct {
	Book  string `json:"book"`
	Count int    `json:"count"`
}

// GeographicalAnchor locates the topic for mapping purposes.
type GeographicalAnchor struct {
	Location string `json:"location"`
	Region   string `json:"region"`
}

// StudyContent is the body of a relevant study answer.
type StudyContent struct {
	LiteralAnswer            string               `json:"literalAnswer"`
	KeyTerms                 []KeyTerm            `json:"keyTerms,omitempty"`
	SearchTopic              string               `json:"searchTopic"`
	GeographicalAnchor       GeographicalAnchor   `json:"geographicalAnchor"`
	Interlinear              *InterlinearData     `json:"interlinear,omitempty"`
	ScriptureReferences      []ScriptureReference `json:"scriptureReferences"`
	HistoricalContext        string               `json:"historicalContext"`
	OriginalLanguageAnalysis []OriginalWord       `json:"originalLanguageAnalysis"`
	TheologicalInsight       string               `json:"theologicalInsight"`
	CommentarySynthesis      []Commentary         `json:"commentarySynthesis"`
	BiblicalBookFrequency    []BookStats          `json:"biblicalBookFrequency"`
}

// StudyResponse is the canonical answer payload. A refusal carries
// IsRelevant=false and a RefusalMessage; it is persisted like any result.
type StudyResponse struct {
	IsRelevant     bool          `json:"isRelevant"`
	RefusalMessage string        `json:"refusalMessage,omitempty"`
	Content        *StudyContent `json:"content,omitempty"`
}
