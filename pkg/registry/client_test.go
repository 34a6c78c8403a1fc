package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `[
	{"owner": "Smokestack", "name": "CoreLib",
	 "versions": [{"version_number": "2.0.0", "download_url": "http://x/corelib.zip", "dependencies": []}]},
	{"owner": "night", "name": "maplight",
	 "versions": [{"version_number": "0.3.1", "download_url": "http://x/maplight.zip",
	               "dependencies": ["Smokestack-CoreLib-2.0.0"]}]}
]`

func testServer(directHits bool) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/main/Smokestack/CoreLib", func(w http.ResponseWriter, r *http.Request) {
		if !directHits {
			http.NotFound(w, r)
			return
		}

		w.Write([]byte(`{"owner": "Smokestack", "name": "CoreLib",
			"versions": [{"version_number": "2.0.0", "download_url": "http://x/corelib.zip", "dependencies": []}]}`))
	})

	mux.HandleFunc("/main/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	mux.HandleFunc("/main", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listing))
	})

	return httptest.NewServer(mux)
}

func TestFindDirect(t *testing.T) {
	server := testServer(true)
	defer server.Close()

	c := &Client{BaseURL: server.URL, Community: "main"}

	pkg, err := c.Find(context.Background(), "Smokestack", "CoreLib")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "2.0.0", pkg.Latest().VersionNumber)
}

func TestFindFallsBackToListScan(t *testing.T) {
	server := testServer(false)
	defer server.Close()

	c := &Client{BaseURL: server.URL, Community: "main"}

	// direct lookup 404s; the scan matches case-insensitively
	pkg, err := c.Find(context.Background(), "NIGHT", "MapLight")
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "night", pkg.Owner)
	assert.Equal(t, []string{"Smokestack-CoreLib-2.0.0"}, pkg.Latest().Dependencies)
}

func TestFindMissing(t *testing.T) {
	server := testServer(false)
	defer server.Close()

	c := &Client{BaseURL: server.URL, Community: "main"}

	pkg, err := c.Find(context.Background(), "nobody", "nothing")
	require.NoError(t, err)
	assert.Nil(t, pkg)
}

func TestListServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL, Community: "main"}

	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
