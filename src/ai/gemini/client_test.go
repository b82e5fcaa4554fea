package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error": "upstream"}`))
			return
		}
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": text}},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGenerateReturnsCandidateText(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "the answer")
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	out, err := c.Generate(context.Background(), "prompt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestGenerateTieredErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"quota exhausted", http.StatusPaymentRequired, ErrQuotaExhausted},
		{"server error", http.StatusInternalServerError, ErrRequestFailed},
		{"bad request", http.StatusBadRequest, ErrRequestFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.status, "")
			defer srv.Close()

			c := NewClient("test-key", srv.URL)
			_, err := c.Generate(context.Background(), "prompt", Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	_, err := c.Generate(context.Background(), "prompt", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestExtractJSON(t *testing.T) {
	obj := `{"verdict": "TRUE", "confidence": 90}`

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", obj, obj},
		{"json fence", "```json\n" + obj + "\n```", obj},
		{"anonymous fence", "```\n" + obj + "```", obj},
		{"fence with prose around", "Here you go:\n```json\n" + obj + "\n```\nHope that helps!", obj},
		{"whitespace", "  " + obj + "\n", obj},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}
