package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/service/booking"
	"therabook/backend/internal/tzmath"
)

const maxBodyBytes = 1 << 20

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, s.log, domain.InvalidArgument("request body must be a JSON object"))
		return
	}

	in := booking.CreateInput{
		TherapistID:   req.TherapistID,
		SessionTypeID: req.SessionTypeID,
		PatientID:     req.PatientID,
		PatientName:   req.PatientName,
		PatientEmail:  req.PatientEmail,
		PatientTz:     req.PatientTz,
	}
	// An unparseable start stays zero so a replayed key still wins over
	// validation; the service rejects the zero instant otherwise.
	if start, err := tzmath.ParseInstant(req.StartUTC); err == nil {
		in.StartUTC = start
	}

	session, created, err := s.booking.Create(r.Context(), in, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, envelope{
			StatusCode: http.StatusOK,
			Message:    "Session already exists",
			Data:       toSessionDTO(session),
		})
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		StatusCode: http.StatusCreated,
		Message:    "Session created successfully",
		Data:       toSessionDTO(session),
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	detail, err := s.booking.Detail(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDetailDTO(detail))
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.booking.Cancel(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

// sessionID returns uuid.Nil for malformed ids, which the service reports
// as not found.
func sessionID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil
	}
	return id
}
