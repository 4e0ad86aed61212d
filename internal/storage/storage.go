package storage

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siae-sistema/cardlink/internal/models"
)

// EnrollmentStore keeps the web station's enrollment attempts in memory.
type EnrollmentStore struct {
	enrollments map[string]*models.Enrollment
	mu          sync.RWMutex
}

func New() *EnrollmentStore {
	return &EnrollmentStore{
		enrollments: make(map[string]*models.Enrollment),
	}
}

// Create starts a new attempt in the capturing state.
func (s *EnrollmentStore) Create(studentID, studentName string) models.Enrollment {
	now := time.Now()
	e := &models.Enrollment{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		StudentName: studentName,
		Status:      models.EnrollmentCapturing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[e.ID] = e
	return *e
}

func (s *EnrollmentStore) Get(id string) (models.Enrollment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, exists := s.enrollments[id]
	if !exists {
		return models.Enrollment{}, false
	}
	return *e, true
}

// Update applies fn to the stored attempt and returns the result.
func (s *EnrollmentStore) Update(id string, fn func(*models.Enrollment)) (models.Enrollment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.enrollments[id]
	if !exists {
		return models.Enrollment{}, false
	}
	fn(e)
	e.UpdatedAt = time.Now()
	return *e, true
}

// GetAll returns every attempt, oldest first.
func (s *EnrollmentStore) GetAll() []models.Enrollment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Enrollment, 0, len(s.enrollments))
	for _, e := range s.enrollments {
		result = append(result, *e)
	}
	slices.SortFunc(result, func(a, b models.Enrollment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result
}

// Active returns the attempt currently holding the station, if any.
func (s *EnrollmentStore) Active() (models.Enrollment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.enrollments {
		if e.Active() {
			return *e, true
		}
	}
	return models.Enrollment{}, false
}
