package httpapi

import (
	"net/http"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
	"medivault.org/internal/document"
	"medivault.org/internal/obs"
)

// Request bodies stay small; file payloads ride multipart under the upload cap.
const maxRequestBody = document.MaxUploadSize + (1 << 20)

// API is the HTTP layer. All collaborators are injected once at process
// start; handlers hold no mutable state of their own.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	docs       *document.Service
	recorder   *audit.Recorder
	readyProbe ReadyProbe
	version    string
}

// New wires routes to handlers. The capability table in internal/auth decides
// who may reach what; handlers only ever call requireOperation.
func New(authSvc *auth.Service, docs *document.Service, recorder *audit.Recorder, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		docs:       docs,
		recorder:   recorder,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	// Login gets its own stricter bucket on top of the global limiter.
	a.mux.Handle("/v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), 5, 1))
	a.mux.HandleFunc("/v1/auth/profile", a.handleProfile)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	a.mux.HandleFunc("/v1/files", a.handleFilesCollection)
	a.mux.HandleFunc("/v1/files/", a.handleFileResource)

	a.mux.HandleFunc("/v1/audit", a.handleAuditList)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully assembled middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = LoggingJSON(h)
	h = RateLimit(h, 50, 25)
	h = MaxBodyBytes(h, maxRequestBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
