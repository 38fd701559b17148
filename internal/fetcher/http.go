package fetcher

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

// HTTPBackend is the default plain-HTTP fetch backend.
type HTTPBackend struct {
	cfg    config.FetchConfig
	logger zerolog.Logger

	// one client per proxy URL; requests without a proxy share the base
	// client. Clients are created up front, not per request.
	baseClient   *http.Client
	proxyClients map[string]*http.Client
}

// NewHTTPBackend builds the backend and one client per configured proxy.
func NewHTTPBackend(cfg config.FetchConfig, proxies []models.ProxyDescriptor, logger zerolog.Logger) (*HTTPBackend, error) {
	b := &HTTPBackend{
		cfg:          cfg,
		logger:       logger.With().Str("component", "HTTPBackend").Logger(),
		proxyClients: make(map[string]*http.Client),
	}

	base, err := b.newClient("")
	if err != nil {
		return nil, err
	}
	b.baseClient = base

	for _, p := range proxies {
		client, err := b.newClient(p.URL)
		if err != nil {
			return nil, models.WrapError(err, "building client for proxy "+p.Name)
		}
		b.proxyClients[p.URL] = client
	}
	return b, nil
}

func (b *HTTPBackend) newClient(proxyURL string) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: b.cfg.InsecureSkipVerify,
		},
	}

	if b.cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to configure HTTP/2, falling back to HTTP/1.1")
		}
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, models.WrapError(err, "parsing proxy URL "+proxyURL)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}

	client := &http.Client{Transport: transport}
	if b.cfg.MaxRedirects > 0 {
		maxRedirects := b.cfg.MaxRedirects
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		}
	}
	return client, nil
}

// Name implements Backend.
func (b *HTTPBackend) Name() string { return BackendHTTP }

// Fetch implements Backend. The request timeout bounds the whole exchange
// through the context; typed failures map per the check error table.
func (b *HTTPBackend) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	fetchCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(fetchCtx, method, req.URL, body)
	if err != nil {
		return nil, models.WrapError(err, "creating request for "+req.URL)
	}

	httpReq.Header.Set("User-Agent", b.cfg.UserAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := b.baseClient
	if req.Proxy != nil && req.Proxy.URL != "" {
		if proxied, ok := b.proxyClients[req.Proxy.URL]; ok {
			client = proxied
		} else {
			b.logger.Warn().Str("proxy", req.Proxy.Name).Msg("No client for proxy, using direct connection")
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, models.NewPageUnloadableError(req.URL, 0, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewPageUnloadableError(req.URL, resp.StatusCode, err)
	}

	if len(content) == 0 {
		return nil, models.NewEmptyReplyError(resp.StatusCode)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	b.logger.Debug().
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("bytes", len(content)).
		Msg("Fetched URL")

	return &Response{
		Content:     content,
		StatusCode:  resp.StatusCode,
		Headers:     headers,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
