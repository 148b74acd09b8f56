package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/osmatch-cli/pkg/osmatch"
)

// Compile-time interface check.
var _ osmatch.Client = (*StubMatchClient)(nil)

// StubMatchClient implements osmatch.Client without network access. Every
// query comes back with an empty results array, so rows are written unmatched.
type StubMatchClient struct{}

// Match implements osmatch.Client.
func (s *StubMatchClient) Match(_ context.Context, query, _ string) (*osmatch.Response, error) {
	body, err := json.Marshal(map[string]any{
		"header": map[string]any{
			"query":      query,
			"maxresults": 1,
			"offline":    true,
		},
		"results": []any{},
	})
	if err != nil {
		return nil, eris.Wrap(err, "stub: marshal response")
	}
	return osmatch.ParseResponse(body)
}
