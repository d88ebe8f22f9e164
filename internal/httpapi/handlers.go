package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"skillreel.org/internal/audit"
	"skillreel.org/internal/auth"
	"skillreel.org/internal/blob"
	"skillreel.org/internal/obs"
	"skillreel.org/internal/points"
	"skillreel.org/internal/stream"
)

// ReadyProbe reports whether downstream dependencies answer.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP façade over the backend core.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	svc    points.Service
	roles  auth.Registry
	stream *stream.Stream
	blobs  *blob.Client

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

func New(rp ReadyProbe, version string, svc points.Service, roles auth.Registry, st *stream.Stream, blobs *blob.Client) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		svc:        svc,
		roles:      roles,
		stream:     st,
		blobs:      blobs,
		rateBurst:  20,
		ratePerSec: 10,
		maxBody:    256 << 20,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/roles/assign", a.handleRoleAssign)
	a.mux.HandleFunc("/v1/roles/me", a.handleCallerRole)

	a.mux.HandleFunc("/v1/profiles", a.handleProfilesCollection)
	a.mux.HandleFunc("/v1/profiles/me", a.handleOwnProfile)
	a.mux.HandleFunc("/v1/profiles/", a.handleProfileResource)

	a.mux.HandleFunc("/v1/videos", a.handleVideosCollection)
	a.mux.HandleFunc("/v1/videos/", a.handleVideoResource)

	a.mux.HandleFunc("/v1/watch/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// SetLimits overrides the default rate limiting and body cap. Call
// before Handler.
func (a *API) SetLimits(rateBurst, ratePerSec int, maxBodyBytes int64) {
	if rateBurst > 0 {
		a.rateBurst = rateBurst
	}
	if ratePerSec > 0 {
		a.ratePerSec = ratePerSec
	}
	if maxBodyBytes > 0 {
		a.maxBody = maxBodyBytes
	}
}

// Handler returns the fully wrapped server handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = obs.Instrument(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = RequestID(h)
	h = Logging(h)
	return h
}

// --- service endpoints ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "skillreel-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "skillreel-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func (a *API) audit(ctx context.Context, event, resourceType, resourceID string, fields map[string]string) {
	payload := map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	}
	for k, v := range fields {
		payload[k] = v
	}
	_ = audit.LogEvent(ctx, event, payload)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// requireIdentity resolves the authenticated caller or answers 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return identity, true
}

// handleServiceError is the single mapping from core failure modes to
// HTTP statuses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, points.ErrInvalidArgument), errors.Is(err, auth.ErrInvalidRole), errors.Is(err, blob.ErrInvalidRef):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, points.ErrSelfWatch):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, points.ErrVideoNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, points.ErrProfileExists), errors.Is(err, points.ErrVideoExists), errors.Is(err, points.ErrInsufficientPoints):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, points.ErrProfileRequired):
		writeError(w, r, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, points.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
