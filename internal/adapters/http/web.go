package web

import (
	"net/http"
	"time"

	"nammabody/internal/adapters/http/middleware"
	"nammabody/internal/adapters/http/perf"
	"nammabody/internal/application/orchestrators"
	"nammabody/internal/domain/contact"
)

// Contact relay routes. The Netlify path is the one the deployed landing page posts to.
const (
	ContactPath         = "/api/contact"
	NetlifyFunctionPath = "/.netlify/functions/send-email"
)

// Deps holds everything the relay routes need.
type Deps struct {
	Relay       orchestrators.RelayContactDeps
	Collector   *perf.Collector // nil disables request recording
	CORSOrigin  string
	RateLimit   int // requests per minute per client; 0 disables limiting
	TrustProxy  bool
	SlowRequest time.Duration
	ExposePerf  bool // serve /debug/perf
}

// Server is the relay's root handler.
type Server struct {
	handler http.Handler
	limiter *middleware.RateLimiter
}

// NewMux wires HTTP handlers for the relay.
// PRE: d.CORSOrigin is non-empty
// POST: Returns a handler; Close must be called to stop the rate limiter
func NewMux(d Deps) *Server {
	s := &Server{}

	contactHandler := http.Handler(handleContact(d.Relay))
	if d.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(d.RateLimit, time.Minute)
		contactHandler = middleware.RateLimit(s.limiter, d.TrustProxy, http.HandlerFunc(rejectRateLimited))(contactHandler)
	}
	// CORS wraps the limiter so refusals stay readable from the browser.
	contactHandler = middleware.CORS(d.CORSOrigin)(contactHandler)

	mux := http.NewServeMux()
	mux.Handle(ContactPath, contactHandler)
	mux.Handle(NetlifyFunctionPath, contactHandler)
	mux.HandleFunc("GET /healthz", handleHealth(d.Relay))
	if d.ExposePerf && d.Collector != nil {
		mux.HandleFunc("GET /debug/perf", handlePerf(d.Collector))
	}

	// Apply middleware: Timing -> SecurityHeaders -> Mux
	s.handler = middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.Timing(d.Collector, d.SlowRequest),
	)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	writeFailure(w, r, contact.ErrRateLimited)
}
