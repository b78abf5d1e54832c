package therapists

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"therabook/backend/internal/availability"
	"therabook/backend/internal/domain"
	"therabook/backend/internal/metrics"
	"therabook/backend/internal/store"
	"therabook/backend/internal/tzmath"
)

const (
	DefaultLimit     = 10
	DefaultStepMin   = 15
	MinStepMin       = 5
	MaxStepMin       = 120
	DefaultPatientTz = "America/Argentina/Buenos_Aires"

	OrderByScarcity = "scarcity"
)

type Repository interface {
	GetTherapist(ctx context.Context, id string) (domain.Therapist, error)
	ListTherapists(ctx context.Context, filter store.TherapistFilter) ([]domain.Therapist, error)
	ListTopics(ctx context.Context) ([]domain.Topic, error)
	ListTopicsByTherapist(ctx context.Context, therapistIDs []string) (map[string][]domain.Topic, error)
	GetSessionType(ctx context.Context, id string) (domain.SessionType, error)
	ListSessionTypes(ctx context.Context, therapistID string) ([]domain.SessionType, error)
	ListSessionTypesByTherapist(ctx context.Context, therapistIDs []string) (map[string][]domain.SessionType, error)
}

type WeekExpander interface {
	Expand(ctx context.Context, therapistID string, weekStart civil.Date, modality domain.Modality) (availability.Week, error)
}

type BusySource interface {
	ListActiveSessions(ctx context.Context, therapistID string, windowStart, windowEnd time.Time) ([]domain.Session, error)
}

type Deps struct {
	Repo             Repository
	Expander         WeekExpander
	Sessions         BusySource
	LeadTime         availability.LeadTime
	DefaultPatientTz string
	DefaultStepMin   int
	Now              func() time.Time
	Log              *slog.Logger
	Metrics          *metrics.Metrics
}

// Service is the read side: therapist directory and weekly availability.
type Service struct {
	repo      Repository
	expander  WeekExpander
	sessions  BusySource
	lead      availability.LeadTime
	patientTz string
	stepMin   int
	now       func() time.Time
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		expander:  d.Expander,
		sessions:  d.Sessions,
		lead:      d.LeadTime,
		patientTz: d.DefaultPatientTz,
		stepMin:   d.DefaultStepMin,
		now:       d.Now,
		log:       d.Log,
		metrics:   d.Metrics,
	}
	if s.patientTz == "" {
		s.patientTz = DefaultPatientTz
	}
	if s.stepMin == 0 {
		s.stepMin = DefaultStepMin
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With(slog.String("component", "therapists"))
	return s
}

type Profile struct {
	Therapist  domain.Therapist
	Topics     []domain.Topic
	Modalities []domain.Modality
	// FreeSlots is set only when the listing was ordered by scarcity.
	FreeSlots *int
}

type ListFilter struct {
	TopicIDs   []string
	RequireAll bool
	Modality   domain.Modality
	Limit      int
	Offset     int
	OrderBy    string

	// Scarcity inputs.
	WeekStart     civil.Date
	SessionTypeID string
	StepMin       int
}

func (s *Service) ListTherapists(ctx context.Context, f ListFilter) ([]Profile, error) {
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 0 {
		return nil, domain.InvalidArgument("limit must be at least 1")
	}
	if f.Offset < 0 {
		return nil, domain.InvalidArgument("offset must not be negative")
	}
	if f.Modality != "" && !f.Modality.Valid() {
		return nil, domain.InvalidArgument("modality must be online or in_person")
	}
	orderBy := strings.ToLower(strings.TrimSpace(f.OrderBy))
	if orderBy != "" && orderBy != OrderByScarcity {
		return nil, domain.InvalidArgument("orderBy must be scarcity")
	}

	topicIDs := make([]string, 0, len(f.TopicIDs))
	for _, id := range f.TopicIDs {
		if id = strings.TrimSpace(id); id != "" {
			topicIDs = append(topicIDs, id)
		}
	}
	filter := store.TherapistFilter{
		TopicIDs:   topicIDs,
		RequireAll: f.RequireAll,
		Modality:   f.Modality,
		Limit:      f.Limit,
		Offset:     f.Offset,
	}

	if orderBy != OrderByScarcity {
		rows, err := s.repo.ListTherapists(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list therapists: %w", err)
		}
		return s.profiles(ctx, rows)
	}

	// Scarcity needs every match ranked before the page is cut.
	filter.Limit, filter.Offset = 0, 0
	rows, err := s.repo.ListTherapists(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list therapists: %w", err)
	}
	profiles, err := s.profiles(ctx, rows)
	if err != nil {
		return nil, err
	}
	if err := s.rankByScarcity(ctx, profiles, f); err != nil {
		return nil, err
	}
	return page(profiles, f.Offset, f.Limit), nil
}

func (s *Service) rankByScarcity(ctx context.Context, profiles []Profile, f ListFilter) error {
	step, err := s.step(f.StepMin)
	if err != nil {
		return err
	}
	weekStart := f.WeekStart
	if weekStart == (civil.Date{}) {
		weekStart = tzmath.CurrentWeekStart(s.now(), time.UTC)
	}

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.Therapist.ID
	}
	typesByTherapist, err := s.repo.ListSessionTypesByTherapist(ctx, ids)
	if err != nil {
		return fmt.Errorf("list session types: %w", err)
	}

	for i := range profiles {
		var types []domain.SessionType
		for _, st := range typesByTherapist[profiles[i].Therapist.ID] {
			if f.SessionTypeID != "" {
				if st.ID == f.SessionTypeID {
					types = []domain.SessionType{st}
					break
				}
				continue
			}
			if f.Modality == "" || st.Modality == f.Modality {
				types = append(types, st)
			}
		}

		free := 0
		for _, st := range types {
			_, n, err := s.slots(ctx, profiles[i].Therapist.ID, st, weekStart, time.UTC, step)
			if err != nil {
				return err
			}
			free += n
		}
		profiles[i].FreeSlots = &free
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := *profiles[i].FreeSlots, *profiles[j].FreeSlots
		if a != b {
			return a < b
		}
		return profiles[i].Therapist.Name < profiles[j].Therapist.Name
	})
	s.log.Debug("ranked therapists by scarcity",
		slog.Int("count", len(profiles)),
		slog.String("week_start", weekStart.String()),
		slog.Int("step_min", step),
	)
	return nil
}

func page(profiles []Profile, offset, limit int) []Profile {
	if offset >= len(profiles) {
		return []Profile{}
	}
	end := len(profiles)
	if limit < end-offset {
		end = offset + limit
	}
	return profiles[offset:end]
}

func (s *Service) profiles(ctx context.Context, rows []domain.Therapist) ([]Profile, error) {
	out := make([]Profile, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, len(rows))
	for i, t := range rows {
		ids[i] = t.ID
	}
	topics, err := s.repo.ListTopicsByTherapist(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list therapist topics: %w", err)
	}
	types, err := s.repo.ListSessionTypesByTherapist(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list session types: %w", err)
	}
	for _, t := range rows {
		out = append(out, Profile{
			Therapist:  t,
			Topics:     nonNil(topics[t.ID]),
			Modalities: modalities(types[t.ID]),
		})
	}
	return out, nil
}

func (s *Service) GetTherapist(ctx context.Context, id string) (Profile, error) {
	t, err := s.therapist(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	profiles, err := s.profiles(ctx, []domain.Therapist{t})
	if err != nil {
		return Profile{}, err
	}
	return profiles[0], nil
}

// ListSessionTypes returns the therapist's catalog ordered by duration.
func (s *Service) ListSessionTypes(ctx context.Context, therapistID string) ([]domain.SessionType, error) {
	if _, err := s.therapist(ctx, therapistID); err != nil {
		return nil, err
	}
	types, err := s.repo.ListSessionTypes(ctx, therapistID)
	if err != nil {
		return nil, fmt.Errorf("list session types: %w", err)
	}
	sort.SliceStable(types, func(i, j int) bool { return types[i].DurationMin < types[j].DurationMin })
	return nonNil(types), nil
}

func (s *Service) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	topics, err := s.repo.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return nonNil(topics), nil
}

type AvailabilityQuery struct {
	TherapistID   string
	SessionTypeID string
	// WeekStart is normalized to its Monday; zero means the current week in
	// the patient's zone.
	WeekStart civil.Date
	PatientTz string
	StepMin   int
}

type WindowSlots struct {
	Window availability.ConcreteWindow
	Slots  []availability.BookableSlot
}

// WeeklyAvailability lists bookable slots for one session type, keyed by
// therapist-local date. Windows without a bookable slot are left out.
type WeeklyAvailability struct {
	TherapistID   string
	SessionTypeID string
	WeekStart     civil.Date
	PatientTz     string
	StepMin       int
	Days          map[string][]WindowSlots
}

type SessionTypeAvailability struct {
	SessionTypeID   string
	SessionTypeName string
	Days            map[string][]WindowSlots
}

type AllAvailability struct {
	TherapistID  string
	WeekStart    civil.Date
	PatientTz    string
	StepMin      int
	SessionTypes []SessionTypeAvailability
}

type resolvedQuery struct {
	therapist domain.Therapist
	weekStart civil.Date
	patientTz string
	loc       *time.Location
	step      int
}

func (s *Service) resolve(ctx context.Context, q AvailabilityQuery) (resolvedQuery, error) {
	step, err := s.step(q.StepMin)
	if err != nil {
		return resolvedQuery{}, err
	}
	tz := strings.TrimSpace(q.PatientTz)
	if tz == "" {
		tz = s.patientTz
	}
	loc, err := tzmath.LoadZone(tz)
	if err != nil {
		return resolvedQuery{}, err
	}
	t, err := s.therapist(ctx, q.TherapistID)
	if err != nil {
		return resolvedQuery{}, err
	}
	weekStart := q.WeekStart
	if weekStart == (civil.Date{}) {
		weekStart = tzmath.CurrentWeekStart(s.now(), loc)
	} else {
		weekStart = tzmath.MondayOf(weekStart)
	}
	return resolvedQuery{therapist: t, weekStart: weekStart, patientTz: tz, loc: loc, step: step}, nil
}

func (s *Service) WeeklyAvailability(ctx context.Context, q AvailabilityQuery) (WeeklyAvailability, error) {
	began := time.Now()
	defer func() { s.metrics.ObserveAvailability("single", time.Since(began)) }()

	r, err := s.resolve(ctx, q)
	if err != nil {
		return WeeklyAvailability{}, err
	}

	st, err := s.repo.GetSessionType(ctx, strings.TrimSpace(q.SessionTypeID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return WeeklyAvailability{}, domain.ErrSessionTypeNotFound
		}
		return WeeklyAvailability{}, fmt.Errorf("load session type: %w", err)
	}
	if st.TherapistID != r.therapist.ID {
		return WeeklyAvailability{}, domain.ErrSessionTypeNotFound
	}

	days, _, err := s.slots(ctx, r.therapist.ID, st, r.weekStart, r.loc, r.step)
	if err != nil {
		return WeeklyAvailability{}, err
	}
	return WeeklyAvailability{
		TherapistID:   r.therapist.ID,
		SessionTypeID: st.ID,
		WeekStart:     r.weekStart,
		PatientTz:     r.patientTz,
		StepMin:       r.step,
		Days:          days,
	}, nil
}

// WeeklyAvailabilityAll is WeeklyAvailability for every session type of
// the therapist, in catalog order.
func (s *Service) WeeklyAvailabilityAll(ctx context.Context, q AvailabilityQuery) (AllAvailability, error) {
	began := time.Now()
	defer func() { s.metrics.ObserveAvailability("all", time.Since(began)) }()

	r, err := s.resolve(ctx, q)
	if err != nil {
		return AllAvailability{}, err
	}
	types, err := s.repo.ListSessionTypes(ctx, r.therapist.ID)
	if err != nil {
		return AllAvailability{}, fmt.Errorf("list session types: %w", err)
	}
	sort.SliceStable(types, func(i, j int) bool { return types[i].DurationMin < types[j].DurationMin })

	out := AllAvailability{
		TherapistID:  r.therapist.ID,
		WeekStart:    r.weekStart,
		PatientTz:    r.patientTz,
		StepMin:      r.step,
		SessionTypes: make([]SessionTypeAvailability, 0, len(types)),
	}
	for _, st := range types {
		days, _, err := s.slots(ctx, r.therapist.ID, st, r.weekStart, r.loc, r.step)
		if err != nil {
			return AllAvailability{}, err
		}
		out.SessionTypes = append(out.SessionTypes, SessionTypeAvailability{
			SessionTypeID:   st.ID,
			SessionTypeName: st.Name,
			Days:            days,
		})
	}
	return out, nil
}

// slots expands the week for the session type's modality and generates
// bookable slots per window. Busy sessions are read without the booking
// lock, so the result may be stale.
func (s *Service) slots(ctx context.Context, therapistID string, st domain.SessionType, weekStart civil.Date, loc *time.Location, stepMin int) (map[string][]WindowSlots, int, error) {
	week, err := s.expander.Expand(ctx, therapistID, weekStart, st.Modality)
	if err != nil {
		return nil, 0, err
	}
	days := make(map[string][]WindowSlots)
	bounds, ok := week.Bounds()
	if !ok {
		return days, 0, nil
	}

	rows, err := s.sessions.ListActiveSessions(ctx, therapistID, bounds.Start, bounds.End)
	if err != nil {
		return nil, 0, fmt.Errorf("list active sessions: %w", err)
	}
	busy := make([]availability.Span, len(rows))
	for i, r := range rows {
		busy[i] = availability.Span{Start: r.StartUTC, End: r.EndUTC}
	}

	notBefore := s.lead.Earliest(s.now().UTC())
	total := 0
	for _, w := range week.All() {
		slots := availability.GenerateSlots(availability.SlotRequest{
			Window:     w.Span(),
			Duration:   st.Duration(),
			Step:       time.Duration(stepMin) * time.Minute,
			Busy:       busy,
			PatientLoc: loc,
			NotBefore:  notBefore,
		})
		if len(slots) == 0 {
			continue
		}
		key := w.Date.String()
		days[key] = append(days[key], WindowSlots{Window: w, Slots: slots})
		total += len(slots)
	}
	return days, total, nil
}

func (s *Service) step(stepMin int) (int, error) {
	if stepMin == 0 {
		return s.stepMin, nil
	}
	if stepMin < MinStepMin || stepMin > MaxStepMin {
		return 0, domain.InvalidArgument(fmt.Sprintf("stepMin must be between %d and %d", MinStepMin, MaxStepMin))
	}
	return stepMin, nil
}

func (s *Service) therapist(ctx context.Context, id string) (domain.Therapist, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Therapist{}, domain.ErrTherapistNotFound
	}
	t, err := s.repo.GetTherapist(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Therapist{}, domain.ErrTherapistNotFound
		}
		return domain.Therapist{}, fmt.Errorf("load therapist: %w", err)
	}
	return t, nil
}

func modalities(types []domain.SessionType) []domain.Modality {
	seen := make(map[domain.Modality]struct{}, 2)
	out := make([]domain.Modality, 0, 2)
	for _, st := range types {
		if _, ok := seen[st.Modality]; ok {
			continue
		}
		seen[st.Modality] = struct{}{}
		out = append(out, st.Modality)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
