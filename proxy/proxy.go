// Package proxy forwards browser requests to the API server, authenticating them with the access token from the user's
// session. It also implements the login that establishes that session.
package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/KLTN-2025/PTNTYTST5951/user"
	"github.com/rs/zerolog/log"
	otelapi "go.opentelemetry.io/otel"
)

// removedHeaders are never forwarded: hop-by-hop headers, browser fingerprinting headers and the caller's credentials.
var removedHeaders = []string{
	"Host",
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Sec-Fetch-Mode",
	"Sec-Fetch-Site",
	"Sec-Fetch-Dest",
	"Sec-Ch-Ua",
	"Sec-Ch-Ua-Mobile",
	"Sec-Ch-Ua-Platform",
	"Authorization",
}

var proxiedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

type Metrics interface {
	ObserveProxyRequest(method string, statusCode int, start time.Time)
}

type Proxy struct {
	upstream  *url.URL
	protected []string
	sessions  *user.SessionManager
	metrics   Metrics
	proxy     *httputil.ReverseProxy
}

// New creates the proxy. Upstream calls are traced on top of the given transport; nil uses http.DefaultTransport.
func New(upstream *url.URL, protectedPaths []string, sessions *user.SessionManager, observer Metrics, transport http.RoundTripper) *Proxy {
	if transport == nil {
		transport = http.DefaultTransport
	}
	result := &Proxy{
		upstream:  upstream,
		protected: protectedPaths,
		sessions:  sessions,
		metrics:   observer,
	}
	result.proxy = &httputil.ReverseProxy{
		Rewrite:      result.rewrite,
		Transport:    otel.NewTracedHTTPTransport(transport, otelapi.Tracer("proxy")),
		ErrorHandler: result.handleError,
	}
	return result
}

func (p *Proxy) RegisterHandlers(mux *http.ServeMux) {
	for _, method := range proxiedMethods {
		mux.HandleFunc(method+" /api/proxy/{path...}", p.handleProxy)
	}
}

func (p *Proxy) handleProxy(response http.ResponseWriter, request *http.Request) {
	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: response, status: http.StatusOK}
	defer func() {
		p.metrics.ObserveProxyRequest(request.Method, recorder.status, start)
	}()

	session := p.sessions.Get(request)
	if p.isProtected("/"+request.PathValue("path")) && (session == nil || !session.HasValidToken(time.Now())) {
		httpserv.WriteError(request.Context(), recorder, httpserv.NewErrorWithCode("Unauthorized", http.StatusUnauthorized), "proxy")
		return
	}
	if session != nil && session.HasValidToken(time.Now()) {
		request = request.WithContext(withAccessToken(request.Context(), session.AccessToken))
	}
	p.proxy.ServeHTTP(recorder, request)
}

func (p *Proxy) rewrite(proxyRequest *httputil.ProxyRequest) {
	in := proxyRequest.In
	out := proxyRequest.Out
	out.URL = p.targetURL(in.PathValue("path"), in.URL.RawQuery)
	out.Host = ""
	for _, header := range removedHeaders {
		out.Header.Del(header)
	}
	if token := accessTokenFrom(in.Context()); token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	// ReverseProxy drops inbound X-Forwarded headers in Rewrite mode, restore them
	forwardedProto := in.Header.Get("X-Forwarded-Proto")
	if forwardedProto == "" {
		forwardedProto = "https"
	}
	out.Header.Set("X-Forwarded-Proto", forwardedProto)
	forwardedHost := in.Header.Get("X-Forwarded-Host")
	if forwardedHost == "" {
		forwardedHost = p.upstream.Host
	}
	out.Header.Set("X-Forwarded-Host", forwardedHost)
}

// targetURL returns {upstream}/api/{path}?{query}.
func (p *Proxy) targetURL(path string, rawQuery string) *url.URL {
	target := p.upstream.JoinPath("api", path)
	// JoinPath returns a relative path when the upstream URL has no path
	if !strings.HasPrefix(target.Path, "/") {
		target.Path = "/" + target.Path
		if target.RawPath != "" {
			target.RawPath = "/" + target.RawPath
		}
	}
	target.RawQuery = rawQuery
	return target
}

func (p *Proxy) handleError(response http.ResponseWriter, request *http.Request, err error) {
	log.Ctx(request.Context()).Error().Err(err).Msgf("Proxy request to upstream failed (path=%s)", request.PathValue("path"))
	httpserv.WriteJSON(request.Context(), response, http.StatusInternalServerError, map[string]string{"error": "Internal proxy error"})
}

func (p *Proxy) isProtected(path string) bool {
	for _, prefix := range p.protected {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
