package httpclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON decodes the response body into a generic structure that
// extraction expressions can be run against. The vendor APIs are all
// JSON; anything else is an error the caller folds into a failed row.
func ParseJSON(resp *Response) (any, error) {
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	contentType := strings.ToLower(resp.ContentType)
	if contentType != "" && !strings.Contains(contentType, "json") {
		return nil, fmt.Errorf("unexpected content type %q", resp.ContentType)
	}

	var result any
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return result, nil
}
