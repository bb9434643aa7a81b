package study

import "encoding/json"

// responseSchemaJSON is the canonical JSON schema for StudyResponse. It is
// sent to the provider as the structured-output schema and compiled locally
// to validate every parsed payload before acceptance.
const responseSchemaJSON = `{
  "type": "object",
  "properties": {
    "isRelevant": {
      "type": "boolean",
      "description": "True if the query relates to the Bible, scripture, theology, or biblical history."
    },
    "refusalMessage": {
      "type": "string",
      "description": "Set when isRelevant is false: a brief explanation that only biblical topics are covered."
    },
    "content": {
      "type": "object",
      "properties": {
        "literalAnswer": {"type": "string"},
        "keyTerms": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "term": {"type": "string"},
              "definition": {"type": "string"}
            },
            "required": ["term", "definition"]
          }
        },
        "searchTopic": {"type": "string"},
        "geographicalAnchor": {
          "type": "object",
          "properties": {
            "location": {"type": "string"},
            "region": {"type": "string"}
          },
          "required": ["location", "region"]
        },
        "interlinear": {
          "type": "object",
          "properties": {
            "reference": {"type": "string"},
            "language": {"type": "string"},
            "words": {
              "type": "array",
              "items": {
                "type": "object",
                "properties": {
                  "original": {"type": "string"},
                  "transliteration": {"type": "string"},
                  "english": {"type": "string"},
                  "partOfSpeech": {"type": "string"}
                },
                "required": ["original", "transliteration", "english", "partOfSpeech"]
              }
            }
          },
          "required": ["reference", "language", "words"]
        },
        "scriptureReferences": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "reference": {"type": "string"},
              "text": {"type": "string"}
            },
            "required": ["reference", "text"]
          }
        },
        "historicalContext": {"type": "string"},
        "originalLanguageAnalysis": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "word": {"type": "string"},
              "original": {"type": "string"},
              "transliteration": {"type": "string"},
              "language": {"type": "string"},
              "definition": {"type": "string"},
              "usage": {"type": "string"}
            },
            "required": ["word", "original", "transliteration", "language", "definition", "usage"]
          }
        },
        "theologicalInsight": {"type": "string"},
        "commentarySynthesis": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "source": {"type": "string"},
              "text": {"type": "string"},
              "tradition": {"type": "string"}
            },
            "required": ["source", "text", "tradition"]
          }
        },
        "biblicalBookFrequency": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "book": {"type": "string"},
              "count": {"type": "integer"}
            },
            "required": ["book", "count"]
          }
        }
      },
      "required": [
        "literalAnswer",
        "searchTopic",
        "geographicalAnchor",
        "scriptureReferences",
        "historicalContext",
        "originalLanguageAnalysis",
        "theologicalInsight",
        "commentarySynthesis",
        "biblicalBookFrequency"
      ]
    }
  },
  "required": ["isRelevant"]
}`

// ResponseSchema returns the canonical StudyResponse schema document.
func ResponseSchema() json.RawMessage {
	return json.RawMessage(responseSchemaJSON)
}
