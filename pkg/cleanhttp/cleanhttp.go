package cleanhttp

import (
	"net"
	"net/http"
	"time"
)

var DefaultTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		DualStack: true,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	DisableCompression:    true,
}

// MetadataClient serves registry and release-feed lookups. Small JSON
// bodies, so a whole-request timeout is fine.
var MetadataClient = &http.Client{
	Transport: DefaultTransport,
	Timeout:   30 * time.Second,
}

// DownloadClient serves artifact streaming. No client timeout here;
// transfers carry their own end-to-end deadline via context.
var DownloadClient = &http.Client{
	Transport: DefaultTransport,
}
