// Package blob models opaque references to externally stored binary
// content and the client used to push bytes into the external store.
// The service core never interprets the referenced bytes.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Ref is an opaque, directly fetchable handle to external content.
type Ref struct {
	URL string `json:"url"`
}

var ErrInvalidRef = errors.New("blob: invalid reference")

// FromURL builds a reference from an already stored object's URL.
func FromURL(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, ErrInvalidRef
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, ErrInvalidRef
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Ref{}, ErrInvalidRef
	}
	return Ref{URL: raw}, nil
}

// IsZero reports whether the reference points at nothing.
func (r Ref) IsZero() bool { return r.URL == "" }

// DirectURL returns the fetchable location of the content.
func (r Ref) DirectURL() string { return r.URL }

// ProgressFunc receives upload progress as a percentage in [0,100].
// Invoked only when the total size is known up front.
type ProgressFunc func(pct int)

// Client uploads raw bytes to the external blob gateway.
type Client struct {
	rest    *resty.Client
	gateway string
}

// NewClient creates a gateway client. The gateway URL points at the
// external content-addressable store's ingest endpoint.
func NewClient(gatewayURL string) *Client {
	rc := resty.New().
		SetTimeout(5 * time.Minute).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Client{rest: rc, gateway: strings.TrimRight(gatewayURL, "/")}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload streams content to the gateway and returns the stored reference.
// size may be zero when unknown; progress is then not reported.
func (c *Client) Upload(ctx context.Context, r io.Reader, size int64, onProgress ProgressFunc) (Ref, error) {
	if c == nil || c.gateway == "" {
		return Ref{}, errors.New("blob: gateway not configured")
	}
	body := r
	if onProgress != nil && size > 0 {
		body = &progressReader{r: r, total: size, report: onProgress}
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(body).
		Post(c.gateway + "/blobs")
	if err != nil {
		return Ref{}, fmt.Errorf("blob: upload: %w", err)
	}
	if resp.IsError() {
		return Ref{}, fmt.Errorf("blob: gateway returned %s", resp.Status())
	}

	var out uploadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Ref{}, fmt.Errorf("blob: decode gateway response: %w", err)
	}
	return FromURL(out.URL)
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
