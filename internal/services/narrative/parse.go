package narrative

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var trailingObject = regexp.MustCompile(`\{[\s\S]*\}`)

// decodeJSON parses the model output into v. When the text carries prose or
// code fences around the object, the outermost braces are tried as a fallback.
func decodeJSON(text string, v interface{}) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty model output")
	}

	firstErr := json.Unmarshal([]byte(text), v)
	if firstErr == nil {
		return nil
	}

	match := trailingObject.FindString(text)
	if match == "" {
		return fmt.Errorf("model output is not JSON: %w", firstErr)
	}
	if err := json.Unmarshal([]byte(match), v); err != nil {
		return fmt.Errorf("model output is not JSON: %w", err)
	}
	return nil
}
