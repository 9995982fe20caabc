package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hengadev/carevault"
	"github.com/hengadev/carevault/internal/monitoring"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	UserID      int64          `json:"user_id"`
	Role        carevault.Role `json:"role"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.metrics.IncrementCounter(monitoring.MetricLoginAttempts, map[string]string{"result": "failure"})
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.IncrementCounter(monitoring.MetricLoginAttempts, map[string]string{"result": "success"})

	token, err := s.tokens.Issue(Session{Principal: p, Username: strings.TrimSpace(req.Username)})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
		UserID:      p.UserID,
		Role:        p.Role,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	if err := s.auth.Logout(r.Context(), session.Principal, session.Username); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	analytics, err := s.records.Dashboard(r.Context(), session.Principal)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	analytics, err := s.records.Analytics(r.Context(), session.Principal)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	anonymized, _ := strconv.ParseBool(r.URL.Query().Get("anonymized"))

	views, err := s.records.ListPatients(r.Context(), session.Principal, anonymized)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(views))
}

func (s *Server) handleListEditable(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	views, err := s.records.ListEditable(r.Context(), session.Principal)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(views))
}

func (s *Server) handleAddPatient(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())

	var in carevault.PatientInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.records.AddPatient(r.Context(), session.Principal, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	id, err := patientID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var upd carevault.PatientUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.records.UpdatePatient(r.Context(), session.Principal, id, upd); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	id, err := patientID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.records.DeletePatient(r.Context(), session.Principal, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleViewLogs(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	action := carevault.Action(strings.ToUpper(strings.TrimSpace(query.Get("action"))))

	entries, err := s.records.ViewLogs(r.Context(), session.Principal, action, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	kind, err := carevault.ParseExportKind(mux.Vars(r)["kind"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Buffer so that a failure can still be reported with a status code.
	var buf bytes.Buffer
	if _, err := s.records.Export(r.Context(), session.Principal, kind, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", carevault.ExportFileName(kind, s.now())))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Warn("Failed to write export")
	}
}

func (s *Server) handleUploadExport(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	if s.uploader == nil {
		s.writeError(w, r, http.StatusNotImplemented, "export upload is not configured")
		return
	}
	kind, err := carevault.ParseExportKind(mux.Vars(r)["kind"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	location, err := s.records.UploadEncryptedExport(r.Context(), session.Principal, kind, s.uploader)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"location": location})
}

func patientID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid patient id")
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// nonNil makes empty listings encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, carevault.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, carevault.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, carevault.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, carevault.ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, carevault.ErrDecryptionFailed):
		return http.StatusUnprocessableEntity
	case carevault.IsRetryableError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError reports err to the client. Messages of unexpected errors stay
// in the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.WithContext(r.Context()).WithError(err).Error("Request failed")
		message = http.StatusText(status)
	}
	s.writeError(w, r, status, message)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, errorResponse{
		Code:      http.StatusText(status),
		Message:   message,
		RequestID: requestID(r.Context()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
