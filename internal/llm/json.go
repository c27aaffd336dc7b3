package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnmarshalResponse decodes a JSON object from a model response.
//
// Models asked for JSON frequently wrap it in a Markdown code fence or
// surround it with prose. The decoder strips fences and slices from
// the first '{' to the last '}' before unmarshaling.
func UnmarshalResponse(response string, v any) error {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx != -1 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON object in model response")
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err != nil {
		return fmt.Errorf("decoding model response: %w", err)
	}
	return nil
}
