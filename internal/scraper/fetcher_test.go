package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "english article", url: "https://en.wikipedia.org/wiki/Alan_Turing"},
		{name: "http scheme", url: "http://en.wikipedia.org/wiki/Alan_Turing"},
		{name: "long subdomain", url: "https://simple.wikipedia.org/wiki/Go", wantErr: true},
		{name: "three letter language", url: "https://ast.wikipedia.org/wiki/Go"},
		{name: "bare domain", url: "https://wikipedia.org/wiki/Go"},
		{name: "uppercase language", url: "https://EN.Wikipedia.org/wiki/Alan_Turing"},
		{name: "uppercase domain", url: "https://en.WIKIPEDIA.ORG/wiki/Alan_Turing"},
		{name: "uppercase scheme", url: "HTTPS://en.wikipedia.org/wiki/Alan_Turing"},
		{name: "uppercase wiki path", url: "https://en.wikipedia.org/WIKI/Alan_Turing", wantErr: true},
		{name: "russian article", url: "https://ru.wikipedia.org/wiki/Тьюринг,_Алан"},
		{name: "empty", url: "", wantErr: true},
		{name: "no article", url: "https://en.wikipedia.org/wiki/", wantErr: true},
		{name: "main page root", url: "https://en.wikipedia.org/", wantErr: true},
		{name: "other site", url: "https://example.com/wiki/Go", wantErr: true},
		{name: "lookalike host", url: "https://en.wikipedia.org.evil.com/wiki/Go", wantErr: true},
		{name: "mobile host", url: "https://en.m.wikipedia.org/wiki/Go", wantErr: true},
		{name: "no scheme", url: "en.wikipedia.org/wiki/Go", wantErr: true},
		{name: "ftp scheme", url: "ftp://en.wikipedia.org/wiki/Go", wantErr: true},
		{name: "too long", url: "https://en.wikipedia.org/wiki/" + strings.Repeat("a", MaxURLLength), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrInvalidURL))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	// Arrange
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(FetcherConfig{})

	// Act
	body, err := fetcher.Fetch(context.Background(), srv.URL)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "<html><body>ok</body></html>", string(body))
	assert.Equal(t, DefaultUserAgent, gotUA, "Должен отправляться браузерный User-Agent")
}

func TestHTTPFetcher_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		cfg     FetcherConfig
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				w.Write([]byte("late"))
			},
			cfg: FetcherConfig{Timeout: 20 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPFetcher(tt.cfg).Fetch(context.Background(), srv.URL)

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrFetch), "ожидается ErrFetch, получено %v", err)
		})
	}
}

func TestHTTPFetcher_Fetch_LimitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	body, err := NewHTTPFetcher(FetcherConfig{MaxBodyBytes: 10}).Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Len(t, body, 10)
}
