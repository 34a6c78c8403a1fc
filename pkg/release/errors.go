package release

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedResponse means the feed answered but the body was not a
// usable release (bad JSON, empty tag). Treated as "no usable release",
// not fatal.
var ErrMalformedResponse = errors.New("malformed release response")

// ErrNoMatchingAsset means the release carried no artifact for the
// current platform. User-facing, not a crash.
var ErrNoMatchingAsset = errors.New("no matching asset for platform")

// NetworkError wraps a transport-level failure. The pipeline abandons
// the operation with the ledger untouched; retrying later is safe.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request to %s failed with status %d", e.URL, e.Status)
	}

	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
