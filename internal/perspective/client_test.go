package perspective

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conversationai/harassment-manager/internal/toxicity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_IsEnabled(t *testing.T) {
	assert.True(t, NewClient("key", "").IsEnabled())
	assert.False(t, NewClient("", "").IsEnabled())
}

func TestScoreParsesAttributeScores(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comments:analyze", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"attributeScores": {
				"TOXICITY": {"summaryScore": {"value": 0.91, "type": "PROBABILITY"}},
				"INSULT": {"summaryScore": {"value": 0.72, "type": "PROBABILITY"}}
			}
		}`)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	scores, err := client.Score(context.Background(), "you are awful")
	require.NoError(t, err)

	assert.Equal(t, 0.91, scores[toxicity.AttributeToxicity])
	assert.Equal(t, 0.72, scores[toxicity.AttributeInsult])
	_, scored := scores[toxicity.AttributeThreat]
	assert.False(t, scored, "attributes absent from the response stay unscored")

	requested := gotBody["requestedAttributes"].(map[string]interface{})
	assert.Len(t, requested, len(toxicity.AllAttributes))
	assert.Equal(t, true, gotBody["doNotStore"])
}

func TestScoreEmptyTextSkipsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty text")
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	scores, err := client.Score(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestScoreAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "quota exceeded"}}`)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	_, err := client.Score(context.Background(), "some text")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
