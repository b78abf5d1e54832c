package rest

import (
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/service/therapists"
	"therabook/backend/internal/tzmath"
)

func (s *Server) listTherapists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := therapists.ListFilter{
		RequireAll:    q.Get("requireAll") == "true",
		Modality:      domain.Modality(strings.TrimSpace(q.Get("modality"))),
		OrderBy:       q.Get("orderBy"),
		SessionTypeID: strings.TrimSpace(q.Get("sessionTypeId")),
	}
	if raw := strings.TrimSpace(q.Get("topicIds")); raw != "" {
		f.TopicIDs = strings.Split(raw, ",")
	}

	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit", 1); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if f.Offset, err = intParam(q.Get("offset"), "offset", 0); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if f.StepMin, err = intParam(q.Get("stepMin"), "stepMin", 1); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if f.WeekStart, err = dateParam(q.Get("weekStart")); err != nil {
		writeError(w, r, s.log, err)
		return
	}

	profiles, err := s.therapists.ListTherapists(r.Context(), f)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]therapistDTO, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toTherapistDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTherapist(w http.ResponseWriter, r *http.Request) {
	p, err := s.therapists.GetTherapist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTherapistDTO(p))
}

func (s *Server) listSessionTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.therapists.ListSessionTypes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]sessionTypeDTO, 0, len(types))
	for _, st := range types {
		out = append(out, toSessionTypeDTO(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.therapists.ListTopics(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]topicDTO, 0, len(topics))
	for _, t := range topics {
		out = append(out, topicDTO{ID: t.ID, Name: t.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// availability serves one session type when sessionTypeId is given and
// every session type of the therapist otherwise.
func (s *Server) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := therapists.AvailabilityQuery{
		TherapistID:   chi.URLParam(r, "id"),
		SessionTypeID: strings.TrimSpace(q.Get("sessionTypeId")),
		PatientTz:     q.Get("patientTz"),
	}
	var err error
	if query.StepMin, err = intParam(q.Get("stepMin"), "stepMin", 1); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if query.WeekStart, err = dateParam(q.Get("weekStart")); err != nil {
		writeError(w, r, s.log, err)
		return
	}

	if query.SessionTypeID == "" {
		all, err := s.therapists.WeeklyAvailabilityAll(r.Context(), query)
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		out := allAvailabilityDTO{
			TherapistID:  all.TherapistID,
			WeekStart:    all.WeekStart.String(),
			PatientTz:    all.PatientTz,
			StepMin:      all.StepMin,
			SessionTypes: make([]sessionTypeAvailabilityDTO, 0, len(all.SessionTypes)),
		}
		for _, st := range all.SessionTypes {
			out.SessionTypes = append(out.SessionTypes, sessionTypeAvailabilityDTO{
				SessionTypeID:   st.SessionTypeID,
				SessionTypeName: st.SessionTypeName,
				Availability:    toDays(st.Days),
			})
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	week, err := s.therapists.WeeklyAvailability(r.Context(), query)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityDTO{
		TherapistID:   week.TherapistID,
		SessionTypeID: week.SessionTypeID,
		WeekStart:     week.WeekStart.String(),
		PatientTz:     week.PatientTz,
		StepMin:       week.StepMin,
		Availability:  toDays(week.Days),
	})
}

// intParam parses an optional integer query parameter. Zero means absent.
func intParam(raw, name string, min int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.InvalidArgument(name + " must be a number")
	}
	if n < min {
		return 0, domain.InvalidArgument(name + " must be at least " + strconv.Itoa(min))
	}
	return n, nil
}

func dateParam(raw string) (civil.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return civil.Date{}, nil
	}
	return tzmath.ParseDate(raw)
}
