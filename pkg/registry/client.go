package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/gantryhq/gantry/pkg/cleanhttp"
	"github.com/gantryhq/gantry/pkg/data"
)

// Client queries a community-scoped package registry.
type Client struct {
	logger hclog.Logger

	BaseURL   string
	Community string

	Client *http.Client
}

func (c *Client) L() hclog.Logger {
	if c.logger != nil {
		return c.logger
	}

	c.logger = hclog.L()

	return c.logger
}

func (c *Client) SetLogger(logger hclog.Logger) {
	c.logger = logger
}

func (c *Client) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}

	return cleanhttp.MetadataClient
}

func (c *Client) get(ctx context.Context, url string, v interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, errors.WithStack(err)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "querying %s", url)
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, errors.Errorf("registry %s returned status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, errors.Wrapf(err, "decoding %s", url)
	}

	return true, nil
}

// Package looks a package up directly. found=false is not an error;
// some registries answer 404 for packages that do exist in the full
// community list.
func (c *Client) Package(ctx context.Context, owner, name string) (*data.PackageListing, bool, error) {
	url := c.BaseURL + "/" + c.Community + "/" + owner + "/" + name

	var pkg data.PackageListing

	found, err := c.get(ctx, url, &pkg)
	if err != nil || !found {
		return nil, false, err
	}

	return &pkg, true, nil
}

// List fetches the full community package list.
func (c *Client) List(ctx context.Context) ([]data.PackageListing, error) {
	var pkgs []data.PackageListing

	found, err := c.get(ctx, c.BaseURL+"/"+c.Community, &pkgs)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, errors.Errorf("community %s not found", c.Community)
	}

	return pkgs, nil
}

// Find resolves owner/name, first by direct lookup and then by a
// case-insensitive scan of the community list. nil without error means
// the package genuinely is not published.
func (c *Client) Find(ctx context.Context, owner, name string) (*data.PackageListing, error) {
	pkg, found, err := c.Package(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	if found {
		return pkg, nil
	}

	c.L().Debug("direct lookup missed, scanning community list", "owner", owner, "name", name)

	pkgs, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range pkgs {
		if strings.EqualFold(pkgs[i].Owner, owner) && strings.EqualFold(pkgs[i].Name, name) {
			return &pkgs[i], nil
		}
	}

	return nil, nil
}
