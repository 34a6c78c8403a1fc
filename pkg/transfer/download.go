package transfer

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"github.com/gantryhq/gantry/pkg/cleanhttp"
	"github.com/gantryhq/gantry/pkg/humanize"
)

var (
	// ErrCancelled is the cooperative-cancel outcome. It is not a
	// failure; the partial file is left for the caller to clean up.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrTimeout means the end-to-end transfer deadline elapsed.
	ErrTimeout = errors.New("transfer timed out")
)

// DefaultTimeout covers the whole transfer, not individual reads.
const DefaultTimeout = 10 * time.Minute

const chunkSize = 32 * 1024

// ProgressFunc receives the running percentage and human-readable byte
// counters. Only called when the total size is known.
type ProgressFunc func(percent int, counters string)

// Receipt describes a completed transfer.
type Receipt struct {
	BytesRead  int64
	TotalBytes int64

	// Digest is the blake2b-256 of the payload, hex encoded.
	Digest string
}

type Manager struct {
	logger hclog.Logger

	Client  *http.Client
	Timeout time.Duration
}

func (m *Manager) L() hclog.Logger {
	if m.logger != nil {
		return m.logger
	}

	m.logger = hclog.L()

	return m.logger
}

func (m *Manager) SetLogger(logger hclog.Logger) {
	m.logger = logger
}

func (m *Manager) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}

	return cleanhttp.DownloadClient
}

func (m *Manager) timeout() time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}

	return DefaultTimeout
}

// Download streams url to dest in fixed-size chunks. Cancelling ctx
// aborts the stream and returns ErrCancelled; the deadline returns
// ErrTimeout. Progress is reported only when the server announces a
// content length.
func (m *Manager) Download(ctx context.Context, url, dest string, onProgress ProgressFunc) (*Receipt, error) {
	dctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(dctx, "GET", url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	resp, err := m.client().Do(req)
	if err != nil {
		return nil, m.classify(ctx, dctx, err, url)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("download of %s failed with status %d", url, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", dest)
	}

	defer f.Close()

	h, _ := blake2b.New256(nil)

	total := resp.ContentLength

	var read int64

	buf := make([]byte, chunkSize)

	for {
		n, rerr := resp.Body.Read(buf)

		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return nil, errors.Wrapf(werr, "writing %s", dest)
			}

			h.Write(buf[:n])
			read += int64(n)

			if total > 0 && onProgress != nil {
				onProgress(int(read*100/total), humanize.Counters(read, total))
			}
		}

		if rerr == io.EOF {
			break
		}

		if rerr != nil {
			return nil, m.classify(ctx, dctx, rerr, url)
		}
	}

	rec := &Receipt{
		BytesRead:  read,
		TotalBytes: total,
		Digest:     hex.EncodeToString(h.Sum(nil)),
	}

	m.L().Debug("download complete", "url", url, "bytes", read, "digest", rec.Digest)

	return rec, nil
}

// classify separates caller cancellation from the transfer deadline and
// from genuine transport failures.
func (m *Manager) classify(outer, inner context.Context, err error, url string) error {
	if outer.Err() != nil {
		return ErrCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) || inner.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}

	return errors.Wrapf(err, "downloading %s", url)
}
