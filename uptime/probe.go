package uptime

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const noURLMessage = "No URL configured"

var defaultProbeHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
}

// ProberConfig holds the knobs of a Prober.
type ProberConfig struct {
	Timeout       time.Duration
	RedirectLimit int
	// VerifyTLS false means the prober does NOT validate server identity:
	// self-signed, expired and mismatched certificates are accepted.
	VerifyTLS bool
	Transport http.RoundTripper
	Now       func() time.Time
}

// Prober performs single bounded GET probes. It keeps no per-target state.
//
// With the default configuration the prober does not validate server
// identity.
type Prober struct {
	client  *resty.Client
	timeout time.Duration
	now     func() time.Time
}

// NewProber builds a Prober from cfg; zero values fall back to 30s and 5
// redirects.
func NewProber(cfg ProberConfig, logger *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RedirectLimit < 0 {
		cfg.RedirectLimit = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.RedirectLimit)).
		SetHeaders(defaultProbeHeaders).
		SetLogger(logger.Sugar()).
		SetRetryCount(0)
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}
	// Applied after SetTransport so it lands on the transport in use.
	client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: !cfg.VerifyTLS}) //nolint:gosec

	return &Prober{client: client, timeout: cfg.Timeout, now: cfg.Now}
}

// Probe checks one target. Transport failures come back as a Down outcome,
// never as an error.
func (p *Prober) Probe(ctx context.Context, t Target) ProbeOutcome {
	out := ProbeOutcome{
		SystemID:   t.ID,
		SystemName: t.Name,
		CheckedAt:  p.now(),
	}
	if t.URL == "" {
		out.Status = t.Status
		out.Error = noURLMessage
		return out
	}

	out.Attempted = true
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(t.URL)
	out.ElapsedMS = time.Since(start).Milliseconds()
	if resp != nil && resp.RawBody() != nil {
		defer resp.RawBody().Close()
	}

	if err != nil {
		c := ClassifyError(err)
		out.Status = StatusDown
		out.Category = c.Category
		out.Error = c.Message
		out.ErrorCode = c.Code
		out.RawError = err.Error()
		return out
	}

	code := resp.StatusCode()
	out.HTTPStatus = &code
	if code >= 200 && code < 400 {
		out.Status = StatusUp
		return out
	}
	c := classifyStatus(code)
	out.Status = StatusDown
	out.Category = c.Category
	out.Error = c.Message
	out.ErrorCode = c.Code
	return out
}
