package osmatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchBody = `{
	"header": {"uri": "https://api.os.uk/search/match/v1/match?query=10%20Example%20Rd", "maxresults": 1},
	"results": [{
		"DPA": {
			"UPRN": "123",
			"ADDRESS": "10, EXAMPLE ROAD, TOWN, AB1 2CD",
			"POSTCODE": "AB1 2CD",
			"X_COORDINATE": 437345.0,
			"Y_COORDINATE": 115542.0,
			"MATCH": 1.0
		}
	}]
}`

func TestMatch_DefaultEndpointAndParams(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, matchBody)
	}))
	defer srv.Close()

	c := NewClient(WithHTTPClient(newRewriteClient(srv.URL, DefaultBaseURL)))

	resp, err := c.Match(context.Background(), "10 Example Rd,Town,AB1 2CD", "secret")
	require.NoError(t, err)

	assert.Equal(t, "/", gotPath)
	assert.Equal(t, []string{"1"}, gotQuery["maxresults"])
	assert.Equal(t, []string{"10 Example Rd,Town,AB1 2CD"}, gotQuery["query"])
	assert.Equal(t, []string{"secret"}, gotQuery["key"])

	results, ok := resp.Body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	dpa := results[0].(map[string]any)["DPA"].(map[string]any)
	assert.Equal(t, "123", dpa["UPRN"])
	assert.Equal(t, json.Number("437345.0"), dpa["X_COORDINATE"])
	assert.Contains(t, resp.Raw, `"UPRN": "123"`)
}

func TestMatch_OneRequestPerCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"header":{}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	for range 3 {
		_, err := c.Match(context.Background(), "same query", "k")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestMatch_MaxResultsOption(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("maxresults")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithMaxResults(5))
	_, err := c.Match(context.Background(), "q", "k")
	require.NoError(t, err)
	assert.Equal(t, "5", got)
}

func TestMatch_EmptyKey_NoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Match(context.Background(), "q", "")
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestMatch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"statuscode":401,"message":"Missing or unsupported API key provided."}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Match(context.Background(), "q", "bad")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Missing or unsupported API key")
}

func TestMatch_UnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>gateway error</html>`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Match(context.Background(), "q", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestMatch_TrailingGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}<html>proxy error</html>`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Match(context.Background(), "q", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestMatch_ConnectionFailure_HidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(url))
	_, err := c.Match(context.Background(), "q", "super-secret-key")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret-key")
}

func TestParseResponse(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		resp, err := ParseResponse([]byte("  {\"results\": []}\n"))
		require.NoError(t, err)
		assert.Equal(t, `{"results": []}`, resp.Raw)
		assert.Contains(t, resp.Body, "results")
	})

	t.Run("null", func(t *testing.T) {
		_, err := ParseResponse([]byte("null"))
		require.Error(t, err)
	})

	t.Run("array", func(t *testing.T) {
		_, err := ParseResponse([]byte("[1,2]"))
		require.Error(t, err)
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := ParseResponse([]byte(`{"results":[]} <html>proxy error</html>`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected data")
	})

	t.Run("trailing whitespace", func(t *testing.T) {
		_, err := ParseResponse([]byte("{\"results\":[]}\n\n"))
		require.NoError(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseResponse(nil)
		require.Error(t, err)
	})
}
