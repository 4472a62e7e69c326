package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Nhien18112/system-with-dbs/internal/models"
)

// memRegistrationStore mirrors the compare-and-set contract of the SQL repository.
type memRegistrationStore struct {
	mu        sync.Mutex
	nextID    int64
	records   map[int64]models.Registration
	createErr error
	updateErr error
	creates   int
}

func newMemRegistrationStore() *memRegistrationStore {
	return &memRegistrationStore{records: map[int64]models.Registration{}}
}

func (s *memRegistrationStore) Create(ctx context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	s.creates++
	reg.ID = s.nextID
	s.records[reg.ID] = *reg
	return nil
}

// put stores reg as-is, for seeding.
func (s *memRegistrationStore) put(reg models.Registration) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	reg.ID = s.nextID
	s.records[reg.ID] = reg
	return reg.ID
}

func (s *memRegistrationStore) get(id int64) models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

func (s *memRegistrationStore) FindByID(ctx context.Context, id int64) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &reg, nil
}

func (s *memRegistrationStore) filter(keep func(models.Registration) bool) []models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Registration
	for _, reg := range s.records {
		if keep(reg) {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memRegistrationStore) ListByTutorAndStatus(ctx context.Context, tutorID int64, status models.RegistrationStatus) ([]models.Registration, error) {
	return s.filter(func(r models.Registration) bool { return r.OwnedByTutor(tutorID) && r.Status == status }), nil
}

func (s *memRegistrationStore) ListByStudent(ctx context.Context, studentID int64) ([]models.Registration, error) {
	return s.filter(func(r models.Registration) bool { return r.StudentID == studentID }), nil
}

func (s *memRegistrationStore) ListByStatusRequestedBefore(ctx context.Context, status models.RegistrationStatus, cutoff time.Time) ([]models.Registration, error) {
	return s.filter(func(r models.Registration) bool { return r.Status == status && !r.RequestTime.After(cutoff) }), nil
}

func (s *memRegistrationStore) UpdateStatus(ctx context.Context, reg *models.Registration, observed models.RegistrationStatus, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return false, s.updateErr
	}
	current, ok := s.records[reg.ID]
	if !ok || current.Version != expectedVersion || current.Status != observed {
		return false, nil
	}
	current.Status = reg.Status
	current.ApprovedAt = reg.ApprovedAt
	current.ReasonForRejection = reg.ReasonForRejection
	current.Version++
	s.records[reg.ID] = current
	reg.Version = current.Version
	return true, nil
}

type stubRoles map[int64]models.UserRole

func (r stubRoles) ResolveRoles(ctx context.Context, ids ...int64) (map[int64]models.UserRole, error) {
	out := make(map[int64]models.UserRole, len(ids))
	for _, id := range ids {
		if role, ok := r[id]; ok {
			out[id] = role
		}
	}
	return out, nil
}

type stubSuggester struct {
	calls []string
	out   []models.TutorSuggestion
}

func (s *stubSuggester) SuggestTutors(ctx context.Context, subject string) ([]models.TutorSuggestion, error) {
	s.calls = append(s.calls, subject)
	return s.out, nil
}

// memMeetingStore mirrors the meeting repository, including its CAS guards.
type memMeetingStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]models.Meeting
	listErr error
}

func newMemMeetingStore() *memMeetingStore {
	return &memMeetingStore{records: map[int64]models.Meeting{}}
}

func cloneMeeting(m models.Meeting) models.Meeting {
	if m.Appointment != nil {
		appt := *m.Appointment
		m.Appointment = &appt
	}
	if m.CancellationReason != nil {
		reason := *m.CancellationReason
		m.CancellationReason = &reason
	}
	return m
}

func (s *memMeetingStore) Create(ctx context.Context, m *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.records[m.ID] = cloneMeeting(*m)
	return nil
}

func (s *memMeetingStore) get(id int64) models.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMeeting(s.records[id])
}

func (s *memMeetingStore) FindByID(ctx context.Context, id int64) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := cloneMeeting(m)
	return &c, nil
}

func (s *memMeetingStore) filter(keep func(models.Meeting) bool) ([]models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Meeting
	for _, m := range s.records {
		if keep(m) {
			out = append(out, cloneMeeting(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func isStudentAppointment(m models.Meeting, studentID int64) bool {
	appt, ok := m.AsAppointment()
	return ok && appt.StudentID == studentID
}

func (s *memMeetingStore) ListAppointmentsByStudent(ctx context.Context, studentID int64) ([]models.Meeting, error) {
	return s.filter(func(m models.Meeting) bool { return isStudentAppointment(m, studentID) })
}

func (s *memMeetingStore) ListApprovedAppointmentsByStudent(ctx context.Context, studentID int64) ([]models.Meeting, error) {
	return s.filter(func(m models.Meeting) bool {
		return isStudentAppointment(m, studentID) && !m.Cancelled && m.Appointment.Status == models.AppointmentStatusApproved
	})
}

func (s *memMeetingStore) ListCancellableAppointmentsByStudent(ctx context.Context, studentID int64, now time.Time) ([]models.Meeting, error) {
	return s.filter(func(m models.Meeting) bool {
		return isStudentAppointment(m, studentID) && !m.Cancelled && !m.EndTime.Before(now)
	})
}

func (s *memMeetingStore) ListActiveByTutorWithin(ctx context.Context, tutorID int64, start, end time.Time) ([]models.Meeting, error) {
	return s.filter(func(m models.Meeting) bool {
		return m.TutorID == tutorID && !m.Cancelled && !m.EndTime.Before(start) && !m.StartTime.After(end)
	})
}

func (s *memMeetingStore) UpdateCancellation(ctx context.Context, m *models.Meeting, expectedVersion int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[m.ID]
	if !ok || current.Version != expectedVersion || current.Cancelled || current.EndTime.Before(now) {
		return false, nil
	}
	current.Cancelled = m.Cancelled
	current.CancellationReason = m.CancellationReason
	current.Status = m.Status
	current.Version++
	s.records[m.ID] = cloneMeeting(current)
	m.Version = current.Version
	return true, nil
}

func (s *memMeetingStore) UpdateAppointmentStatus(ctx context.Context, m *models.Meeting, observed models.AppointmentStatus, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[m.ID]
	if !ok || current.Appointment == nil || m.Appointment == nil {
		return false, nil
	}
	if current.Version != expectedVersion || current.Cancelled || current.Appointment.Status != observed {
		return false, nil
	}
	current = cloneMeeting(current)
	current.Appointment.Status = m.Appointment.Status
	current.Version++
	s.records[m.ID] = current
	m.Version = current.Version
	return true, nil
}

var errStoreDown = errors.New("store down")
