package agent

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// TrafficPointer is the single external traffic entry on the instance: a
// reverse proxy whose backend is swapped atomically by reference. Readers
// never observe a half-updated target; until a target is set requests get
// 503.
type TrafficPointer struct {
	target atomic.Pointer[url.URL]
	proxy  *httputil.ReverseProxy
}

// NewTrafficPointer returns a pointer with no backend yet.
func NewTrafficPointer(transport http.RoundTripper) *TrafficPointer {
	p := &TrafficPointer{}
	rp := &httputil.ReverseProxy{
		Transport: transport,
		// Flush frequently to keep long responses moving.
		FlushInterval: 100 * time.Millisecond,
		Director: func(req *http.Request) {
			t := p.target.Load()
			req.URL.Scheme = t.Scheme
			req.URL.Host = t.Host
			// Make sure Host is target host (some clients depend on it).
			req.Host = t.Host
			stripHopByHop(req.Header)
		},
		ModifyResponse: func(resp *http.Response) error {
			stripHopByHop(resp.Header)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			http.Error(w, "upstream error", http.StatusBadGateway)
		},
	}
	p.proxy = rp
	return p
}

func stripHopByHop(h http.Header) {
	// Connection header can list additional hop-by-hop headers.
	if c := h.Get("Connection"); c != "" {
		for _, f := range strings.Split(c, ",") {
			h.Del(strings.TrimSpace(f))
		}
	}
	for _, hh := range hopByHopHeaders {
		h.Del(hh)
	}
}

// Set atomically repoints traffic to base (e.g. http://127.0.0.1:39001).
func (p *TrafficPointer) Set(base string) error {
	u, err := url.Parse(base)
	if err != nil {
		return err
	}
	p.target.Store(u)
	return nil
}

// Target returns the current backend base URL, or "" when unset.
func (p *TrafficPointer) Target() string {
	t := p.target.Load()
	if t == nil {
		return ""
	}
	return t.String()
}

func (p *TrafficPointer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.target.Load() == nil {
		http.Error(w, "no backend", http.StatusServiceUnavailable)
		return
	}
	p.proxy.ServeHTTP(w, r)
}
