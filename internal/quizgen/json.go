package quizgen

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var fencedBlock = regexp.MustCompile("(?i)```(?:json)?[ \\t]*\\r?\\n([\\s\\S]*?)\\r?\\n?```")

const quizSchema = `{
  "type": "object",
  "required": ["title", "questions"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "description": {"type": ["string", "null"]},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["text", "options"],
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "type": {"type": ["string", "null"]},
          "options": {
            "type": "array",
            "minItems": 2,
            "items": {
              "type": "object",
              "required": ["text", "isCorrect"],
              "properties": {
                "text": {"type": "string", "minLength": 1},
                "isCorrect": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

const bulletsSchema = `{
  "type": "array",
  "items": {"type": "string", "minLength": 3}
}`

var (
	quizSchemaLoader    = gojsonschema.NewStringLoader(quizSchema)
	bulletsSchemaLoader = gojsonschema.NewStringLoader(bulletsSchema)
)

// ExtractFirstJSON pulls the JSON object out of a model response. A fenced code block
// wins, then the span from the first '{' to the last '}'. Otherwise the trimmed text is
// returned unchanged and left for the parser to reject.
func ExtractFirstJSON(text string) string {
	return extractDelimited(text, "{", "}")
}

func extractFirstArray(text string) string {
	return extractDelimited(text, "[", "]")
}

func extractDelimited(text, open, close string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(text, open)
	end := strings.LastIndex(text, close)
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// validateJSON checks payload against schema, joining every violation into one error.
func validateJSON(schema gojsonschema.JSONLoader, payload string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("schema violation: " + strings.Join(msgs, "; "))
}
