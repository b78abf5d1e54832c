package rest

import (
	"time"

	"therabook/backend/internal/availability"
	"therabook/backend/internal/domain"
	"therabook/backend/internal/service/booking"
	"therabook/backend/internal/service/therapists"
	"therabook/backend/internal/tzmath"
)

type topicDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type therapistDTO struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Timezone   string            `json:"timezone"`
	Topics     []topicDTO        `json:"topics"`
	Modalities []domain.Modality `json:"modalities"`
	FreeSlots  *int              `json:"freeSlots,omitempty"`
}

type sessionTypeDTO struct {
	ID          string          `json:"id"`
	TherapistID string          `json:"therapistId"`
	Name        string          `json:"name"`
	DurationMin int             `json:"durationMin"`
	Modality    domain.Modality `json:"modality"`
	PriceMinor  int64           `json:"priceMinor"`
}

type slotDTO struct {
	StartUTC         string `json:"startUtc"`
	EndUTC           string `json:"endUtc"`
	StartInPatientTz string `json:"startInPatientTz"`
	EndInPatientTz   string `json:"endInPatientTz"`
}

type windowDTO struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	StartTime      string          `json:"startTime"`
	EndTime        string          `json:"endTime"`
	StartUTC       string          `json:"startUtc"`
	EndUTC         string          `json:"endUtc"`
	Duration       int             `json:"duration"`
	Modality       domain.Modality `json:"modality"`
	BookableStarts []slotDTO       `json:"bookableStarts"`
}

type availabilityDTO struct {
	TherapistID   string                 `json:"therapistId"`
	SessionTypeID string                 `json:"sessionTypeId"`
	WeekStart     string                 `json:"weekStart"`
	PatientTz     string                 `json:"patientTz"`
	StepMin       int                    `json:"stepMin"`
	Availability  map[string][]windowDTO `json:"availability"`
}

type sessionTypeAvailabilityDTO struct {
	SessionTypeID   string                 `json:"sessionTypeId"`
	SessionTypeName string                 `json:"sessionTypeName"`
	Availability    map[string][]windowDTO `json:"availability"`
}

type allAvailabilityDTO struct {
	TherapistID  string                       `json:"therapistId"`
	WeekStart    string                       `json:"weekStart"`
	PatientTz    string                       `json:"patientTz"`
	StepMin      int                          `json:"stepMin"`
	SessionTypes []sessionTypeAvailabilityDTO `json:"sessionTypes"`
}

type sessionDTO struct {
	ID               string               `json:"id"`
	TherapistID      string               `json:"therapistId"`
	SessionTypeID    string               `json:"sessionTypeId"`
	PatientID        string               `json:"patientId"`
	PatientName      string               `json:"patientName"`
	PatientEmail     string               `json:"patientEmail"`
	StartUTC         string               `json:"startUtc"`
	EndUTC           string               `json:"endUtc"`
	PatientTz        string               `json:"patientTz"`
	Status           domain.SessionStatus `json:"status"`
	IdempotencyKey   string               `json:"idempotencyKey"`
	CreatedAt        string               `json:"createdAt"`
	CanceledAt       *string              `json:"canceledAt"`
	StartInPatientTz string               `json:"startInPatientTz,omitempty"`
	EndInPatientTz   string               `json:"endInPatientTz,omitempty"`
	SessionType      *sessionTypeDTO      `json:"sessionType,omitempty"`
}

type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

type createSessionRequest struct {
	TherapistID   string `json:"therapistId"`
	SessionTypeID string `json:"sessionTypeId"`
	StartUTC      string `json:"startUtc"`
	PatientID     string `json:"patientId"`
	PatientName   string `json:"patientName"`
	PatientEmail  string `json:"patientEmail"`
	PatientTz     string `json:"patientTz"`
}

func iso(t time.Time) string {
	return tzmath.Format(t, tzmath.FormatISO)
}

func toTherapistDTO(p therapists.Profile) therapistDTO {
	out := therapistDTO{
		ID:         p.Therapist.ID,
		Name:       p.Therapist.Name,
		Timezone:   p.Therapist.Timezone,
		Topics:     make([]topicDTO, 0, len(p.Topics)),
		Modalities: p.Modalities,
		FreeSlots:  p.FreeSlots,
	}
	if out.Modalities == nil {
		out.Modalities = []domain.Modality{}
	}
	for _, t := range p.Topics {
		out.Topics = append(out.Topics, topicDTO{ID: t.ID, Name: t.Name})
	}
	return out
}

func toSessionTypeDTO(st domain.SessionType) sessionTypeDTO {
	return sessionTypeDTO{
		ID:          st.ID,
		TherapistID: st.TherapistID,
		Name:        st.Name,
		DurationMin: st.DurationMin,
		Modality:    st.Modality,
		PriceMinor:  st.PriceMinor,
	}
}

func toDays(days map[string][]therapists.WindowSlots) map[string][]windowDTO {
	out := make(map[string][]windowDTO, len(days))
	for date, windows := range days {
		for _, ws := range windows {
			out[date] = append(out[date], toWindowDTO(ws.Window, ws.Slots))
		}
	}
	return out
}

func toWindowDTO(w availability.ConcreteWindow, slots []availability.BookableSlot) windowDTO {
	out := windowDTO{
		ID:             w.ID,
		Date:           w.Date.String(),
		StartTime:      w.StartTime,
		EndTime:        w.EndTime,
		StartUTC:       iso(w.StartUTC),
		EndUTC:         iso(w.EndUTC),
		Duration:       w.DurationMin,
		Modality:       w.Modality,
		BookableStarts: make([]slotDTO, 0, len(slots)),
	}
	for _, s := range slots {
		out.BookableStarts = append(out.BookableStarts, slotDTO{
			StartUTC:         iso(s.StartUTC),
			EndUTC:           iso(s.EndUTC),
			StartInPatientTz: tzmath.FormatOffset(s.StartLocal),
			EndInPatientTz:   tzmath.FormatOffset(s.EndLocal),
		})
	}
	return out
}

func toSessionDTO(s domain.Session) sessionDTO {
	out := sessionDTO{
		ID:             s.ID.String(),
		TherapistID:    s.TherapistID,
		SessionTypeID:  s.SessionTypeID,
		PatientID:      s.PatientID,
		PatientName:    s.PatientName,
		PatientEmail:   s.PatientEmail,
		StartUTC:       iso(s.StartUTC),
		EndUTC:         iso(s.EndUTC),
		PatientTz:      s.PatientTz,
		Status:         s.Status,
		IdempotencyKey: s.IdempotencyKey,
		CreatedAt:      iso(s.CreatedAt),
	}
	if s.CanceledAt != nil {
		at := iso(*s.CanceledAt)
		out.CanceledAt = &at
	}
	return out
}

func toSessionDetailDTO(d booking.SessionDetail) sessionDTO {
	out := toSessionDTO(d.Session)
	out.StartInPatientTz = tzmath.FormatOffset(d.StartLocal)
	out.EndInPatientTz = tzmath.FormatOffset(d.EndLocal)
	if d.SessionType != nil {
		st := toSessionTypeDTO(*d.SessionType)
		out.SessionType = &st
	}
	return out
}
