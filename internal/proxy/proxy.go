// Package proxy forwards a path prefix on the dashboard origin to the
// boundary server, so the browser sees /metrics as same-origin.
package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leanbalancer/admindash/internal/config"
	"github.com/leanbalancer/admindash/internal/metrics"
	"github.com/leanbalancer/admindash/internal/middleware"
)

// ErrorHeader is set on every response the proxy generates itself, so
// callers can tell a forwarding failure from an upstream error.
const (
	ErrorHeader = "X-Proxy-Error"
	ErrorValue  = "forwarding-failed"
)

// forwardingHeaders are stripped from the outbound request by
// httputil.ReverseProxy when Rewrite is used.
var forwardingHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

// Proxy is an http.Handler for one fixed route.
type Proxy struct {
	prefix  string
	target  *url.URL
	timeout time.Duration
	rp      *httputil.ReverseProxy
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New builds the forwarding route from cfg. The route cannot be changed
// afterwards. logger and m may be nil.
func New(cfg config.ProxyConfig, logger *zap.Logger, m *metrics.Metrics) (*Proxy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	target, err := url.Parse(cfg.Target)
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, fmt.Errorf("proxy target %q: must be an http(s) URL", cfg.Target)
	}
	prefix := cfg.PathPrefix
	if prefix == "" {
		prefix = "/metrics"
	}
	if strings.TrimRight(prefix, "/") == "" {
		return nil, fmt.Errorf("proxy prefix %q: must name a path below /", prefix)
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	p := &Proxy{
		prefix:  strings.TrimRight(prefix, "/"),
		target:  target,
		timeout: timeout,
		logger:  logger.With(zap.String("route", prefix), zap.String("target", target.String())),
		metrics: m,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		TLSHandshakeTimeout:   timeout,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
	if cfg.SkipVerify() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		p.logger.Warn("upstream TLS certificate verification is disabled for this route")
	}

	p.rp = &httputil.ReverseProxy{
		// SetURL rewrites Host to the target and the path is forwarded
		// unchanged. Forwarding headers the client sent pass through; none
		// are added here.
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = pr.In.URL.Path
			pr.Out.URL.RawPath = pr.In.URL.RawPath
			for _, h := range forwardingHeaders {
				if v, ok := pr.In.Header[h]; ok {
					pr.Out.Header[h] = v
				}
			}
		},
		Transport:     transport,
		FlushInterval: -1,
		ModifyResponse: func(*http.Response) error {
			p.metrics.RecordProxyForward()
			return nil
		},
		ErrorHandler: p.handleError,
	}
	return p, nil
}

// Prefix returns the path prefix this route serves.
func (p *Proxy) Prefix() string { return p.prefix }

// Matches reports whether path falls under the route's prefix.
func (p *Proxy) Matches(path string) bool {
	return path == p.prefix || strings.HasPrefix(path, p.prefix+"/")
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !p.Matches(r.URL.Path) {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
		return
	}
	p.rp.ServeHTTP(w, r)
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := http.StatusBadGateway, "unreachable"
	if isTimeout(err) {
		status, kind = http.StatusGatewayTimeout, "timeout"
	}
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// Client went away; nobody reads the response.
		kind = "canceled"
	}

	p.metrics.RecordProxyError(kind)
	p.logger.Warn("forwarding failed",
		zap.String("path", r.URL.Path),
		zap.String("kind", kind),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err))

	w.Header().Set(ErrorHeader, ErrorValue)
	middleware.WriteError(w, status, "gateway_error", fmt.Sprintf("forwarding %s to %s failed: %s", r.URL.Path, p.target.Host, kind))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
