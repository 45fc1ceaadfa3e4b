package recipe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/phrazzld/recipe-queue/internal/generation"
)

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// extractJSON decodes the outermost {...} object found in a model reply
// into v. A second attempt is made with trailing commas removed.
func extractJSON(reply string, v any) error {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object in reply", generation.ErrInvalidResponse)
	}
	raw := reply[start : end+1]

	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	if retryErr := json.Unmarshal([]byte(trailingComma.ReplaceAllString(raw, "$1")), v); retryErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
}
