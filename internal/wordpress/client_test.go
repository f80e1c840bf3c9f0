package wordpress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Autopost/internal/domain"
	"github.com/shaiso/Autopost/internal/repo"
)

type staticCreds struct {
	creds *domain.Credentials
	err   error
}

func (s staticCreds) GetCredentials(context.Context, string, string) (*domain.Credentials, error) {
	return s.creds, s.err
}

func newTestClient(siteURL, username string) *Client {
	return New(Config{
		Credentials: staticCreds{creds: &domain.Credentials{
			ConnectionID:        "conn-1",
			SiteURL:             siteURL + "/",
			Username:            username,
			ApplicationPassword: "app-pass",
		}},
		UserAgent: "test-agent",
	})
}

func TestPublish_Created(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "editor", user)
		assert.Equal(t, "app-pass", pass)
		assert.Equal(t, "test-agent", r.UserAgent())
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42, "link": "https://blog.example.com/?p=42"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, "editor").Publish(context.Background(), "u1", "conn-1", &domain.ProcessedContent{
		Title:      "Hello",
		Content:    "<p>Body</p>",
		Status:     domain.PostStatusPublish,
		Tags:       []string{},
		Categories: []string{"Blog"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "42", res.ExternalID)
	assert.Equal(t, "https://blog.example.com/?p=42", res.Link)

	assert.Equal(t, "Hello", got["title"])
	assert.Equal(t, "publish", got["status"])
	assert.Equal(t, []any{"Blog"}, got["categories"])
	assert.NotContains(t, got, "excerpt")
	assert.NotContains(t, got, "tags")
}

func TestPublish_LargeResponse(t *testing.T) {
	calls := 0
	rendered := strings.Repeat("<p>long tutorial paragraph</p>", 70<<10/30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      42,
			"link":    "https://blog.example.com/?p=42",
			"content": map[string]any{"rendered": rendered, "raw": rendered},
		})
	}))
	defer srv.Close()

	require.Greater(t, len(rendered), maxErrorBody)

	res, err := newTestClient(srv.URL, "editor").Publish(context.Background(), "u1", "conn-1", &domain.ProcessedContent{
		Title:   "Guide",
		Content: rendered,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "42", res.ExternalID)
	assert.Equal(t, 1, calls)
}

func TestPublish_DefaultUsernameAndDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		assert.Equal(t, "admin", user)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "draft", body["status"])

		_, _ = w.Write([]byte(`{"id": 7, "link": "l"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, "").Publish(context.Background(), "u1", "conn-1", &domain.ProcessedContent{Title: "T"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "7", res.ExternalID)
}

func TestPublish_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"wordpress error", http.StatusUnauthorized, `{"code":"rest_cannot_create","message":"Sorry, you are not allowed to create posts."}`, "Sorry, you are not allowed to create posts."},
		{"plain body", http.StatusBadGateway, "<html>bad gateway</html>", "HTTP 502"},
		{"json without message", http.StatusInternalServerError, `{"code":"x"}`, "HTTP 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := newTestClient(srv.URL, "editor").Publish(context.Background(), "u1", "conn-1", &domain.ProcessedContent{Title: "T"})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantMsg, res.Message)
		})
	}
}

func TestPublish_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, "editor").Publish(context.Background(), "u1", "conn-1", &domain.ProcessedContent{Title: "T"})
	assert.ErrorIs(t, err, ErrRequest)
}

func TestPublish_NoCredentials(t *testing.T) {
	c := New(Config{Credentials: staticCreds{err: repo.ErrNotFound}})
	_, err := c.Publish(context.Background(), "u1", "missing", &domain.ProcessedContent{})
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestAPIURL(t *testing.T) {
	assert.Equal(t, "https://a.example/wp-json/wp/v2/posts", apiURL("https://a.example/", "/posts"))
	assert.Equal(t, "https://a.example/blog/wp-json/wp/v2/tags", apiURL("https://a.example/blog", "tags"))
}
