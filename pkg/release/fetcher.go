package release

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/gantryhq/gantry/pkg/cleanhttp"
	"github.com/gantryhq/gantry/pkg/data"
)

// Fetcher queries a release feed for the latest release of a
// repository. It never retries; backoff is the caller's call.
type Fetcher struct {
	common

	// BaseURL of the feed, eg https://api.github.com.
	BaseURL string

	// Token is an optional bearer token sent on every request.
	Token string

	Client *http.Client
}

// Result of a feed query. When NotModified is set the conditional tag
// matched server-side and Release is nil; the replayed tag is carried
// through unchanged.
type Result struct {
	Release        *data.Release
	ConditionalTag string
	NotModified    bool
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}

	return cleanhttp.MetadataClient
}

// Latest fetches the newest release of repo ("owner/name"). A non-empty
// conditionalTag is replayed as If-None-Match so an unchanged feed can
// short-circuit without a body.
func (f *Fetcher) Latest(ctx context.Context, repo, conditionalTag string) (*Result, error) {
	url := f.BaseURL + "/repos/" + repo + "/releases/latest"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	if conditionalTag != "" {
		req.Header.Set("If-None-Match", conditionalTag)
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.L().Debug("release feed unchanged", "repo", repo, "tag", conditionalTag)
		return &Result{NotModified: true, ConditionalTag: conditionalTag}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, &NetworkError{URL: url, Status: resp.StatusCode}
	}

	var rel data.Release

	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "decoding %s: %s", url, err)
	}

	if rel.Tag == "" {
		return nil, errors.Wrapf(ErrMalformedResponse, "release from %s has no tag", url)
	}

	f.L().Debug("fetched release", "repo", repo, "tag", rel.Tag, "assets", len(rel.Assets))

	return &Result{
		Release:        &rel,
		ConditionalTag: resp.Header.Get("ETag"),
	}, nil
}
