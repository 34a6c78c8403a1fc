package release

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherLatest(t *testing.T) {
	var gotAuth, gotMatch string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMatch = r.Header.Get("If-None-Match")

		w.Header().Set("ETag", `"tag-2"`)
		w.Write([]byte(`{
			"tag_name": "v1.4.0",
			"assets": [
				{"name": "gantry-Windows.zip", "browser_download_url": "http://x/win.zip"},
				{"name": "gantry-Linux-X64.tar.gz", "browser_download_url": "http://x/linux.tar.gz"}
			]
		}`))
	}))
	defer server.Close()

	f := &Fetcher{BaseURL: server.URL, Token: "sekrit"}

	res, err := f.Latest(context.Background(), "gantryhq/gantry", `"tag-1"`)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sekrit", gotAuth)
	assert.Equal(t, `"tag-1"`, gotMatch)

	require.False(t, res.NotModified)
	require.NotNil(t, res.Release)
	assert.Equal(t, "v1.4.0", res.Release.Tag)
	assert.Len(t, res.Release.Assets, 2)
	assert.Equal(t, `"tag-2"`, res.ConditionalTag)
}

func TestFetcherLatestNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"tag-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Write([]byte(`{"tag_name": "v1.0.0", "assets": []}`))
	}))
	defer server.Close()

	f := &Fetcher{BaseURL: server.URL}

	res, err := f.Latest(context.Background(), "gantryhq/gantry", `"tag-1"`)
	require.NoError(t, err)

	assert.True(t, res.NotModified)
	assert.Nil(t, res.Release)
	assert.Equal(t, `"tag-1"`, res.ConditionalTag)
}

func TestFetcherLatestMalformed(t *testing.T) {
	cases := map[string]string{
		"bad json": `{"tag_name": `,
		"no tag":   `{"assets": []}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			f := &Fetcher{BaseURL: server.URL}

			_, err := f.Latest(context.Background(), "gantryhq/gantry", "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
		})
	}
}

func TestFetcherLatestTransportError(t *testing.T) {
	f := &Fetcher{BaseURL: "http://127.0.0.1:1"}

	_, err := f.Latest(context.Background(), "gantryhq/gantry", "")
	require.Error(t, err)

	var ne *NetworkError
	assert.True(t, errors.As(err, &ne))
}

func TestFetcherLatestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := &Fetcher{BaseURL: server.URL}

	_, err := f.Latest(context.Background(), "gantryhq/gantry", "")
	require.Error(t, err)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusBadGateway, ne.Status)
}
