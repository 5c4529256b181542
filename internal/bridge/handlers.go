package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/freesat/internal/freesat"
	"github.com/muurk/freesat/internal/keycodes"
	"github.com/muurk/freesat/internal/logging"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 64 << 10

// Error codes returned in error bodies
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeUnknownKey = "unknown_key"
	ErrCodeNotFound   = "not_found"
	ErrCodeBadGateway = "bad_gateway"
	ErrCodeInternal   = "internal_error"
)

// Error is the body of every error response
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Key is one entry of the key table
type Key struct {
	Name string `json:"name"`
	Code int    `json:"code"`
}

// KeysRequest is the body of POST /api/devices/{id}/keys. Sequence wins
// when both are set.
type KeysRequest struct {
	Keys     string   `json:"keys,omitempty"`
	Sequence []string `json:"sequence,omitempty"`
}

// KeysResponse acknowledges a sent key request
type KeysResponse struct {
	Identity string   `json:"identity"`
	Sent     []string `json:"sent"`
}

// CodeRequest is the body of POST /api/devices/{id}/code
type CodeRequest struct {
	Code *int `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeRawJSON(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// statusFor maps a client error onto the bridge's HTTP status and code
func statusFor(err error) (int, string) {
	switch {
	case freesat.IsUnknownKey(err):
		return http.StatusBadRequest, ErrCodeUnknownKey
	case freesat.IsNotFound(err):
		return http.StatusNotFound, ErrCodeNotFound
	case freesat.IsKeyRejected(err), freesat.IsHTTPError(err),
		freesat.IsNetworkError(err), freesat.IsParseError(err):
		return http.StatusBadGateway, ErrCodeBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, ErrCodeBadGateway
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeClientError reports err from the Freesat client
func writeClientError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		logging.Warn("Bridge request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: err.Error(),
		Hint:    freesat.GetTroubleshootingHint(err),
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleKeyTable(w http.ResponseWriter, _ *http.Request) {
	names := keycodes.Names()
	table := make([]Key, 0, len(names))
	for _, name := range names {
		table = append(table, Key{Name: name, Code: keycodes.MustLookup(name)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": table})
}

func (s *Server) handleSendKeys(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req KeysRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	var (
		sent []string
		err  error
	)
	switch {
	case len(req.Sequence) > 0:
		sent = req.Sequence
		err = s.remote.SendKeySequence(r.Context(), id, req.Sequence)
	case req.Keys != "":
		sent = freesat.SplitKeys(req.Keys)
		err = s.remote.SendKeys(r.Context(), id, req.Keys)
	default:
		writeBadRequest(w, `one of "keys" or "sequence" is required`)
		return
	}
	if err != nil {
		writeClientError(w, r, err)
		return
	}

	s.metrics.keysSent.WithLabelValues(id).Add(float64(len(sent)))
	writeJSON(w, http.StatusAccepted, KeysResponse{Identity: id, Sent: sent})
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req CodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Code == nil {
		writeBadRequest(w, `"code" is required`)
		return
	}
	if *req.Code < 0 {
		writeBadRequest(w, `"code" must not be negative`)
		return
	}

	resp, err := s.remote.SendCode(r.Context(), id, *req.Code)
	if err != nil {
		writeClientError(w, r, err)
		return
	}

	if resp.Accepted() {
		s.metrics.keysSent.WithLabelValues(id).Inc()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	status, err := s.remote.PowerStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeClientError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLocale(w http.ResponseWriter, r *http.Request) {
	locale, err := s.remote.Locale(r.Context(), r.PathValue("id"))
	if err != nil {
		writeClientError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locale)
}

func (s *Server) handleNetflix(w http.ResponseWriter, r *http.Request) {
	app, err := s.remote.NetflixStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeClientError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.remote.Regions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeClientError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

// regional serves one of the regional content documents unchanged
func (s *Server) regional(fetch func(context.Context, string) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := fetch(r.Context(), r.PathValue("id"))
		if err != nil {
			writeClientError(w, r, err)
			return
		}
		writeRawJSON(w, http.StatusOK, raw)
	}
}
