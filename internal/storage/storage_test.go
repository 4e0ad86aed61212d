package storage

import (
	"testing"

	"github.com/siae-sistema/cardlink/internal/models"
)

func TestEnrollmentStore(t *testing.T) {
	s := New()

	first := s.Create("A0001", "Ana")
	if first.ID == "" {
		t.Fatal("Expected an id")
	}
	if first.Status != models.EnrollmentCapturing {
		t.Errorf("Expected capturing, got %s", first.Status)
	}

	active, ok := s.Active()
	if !ok || active.ID != first.ID {
		t.Errorf("Expected %s to be active, got %+v", first.ID, active)
	}

	updated, ok := s.Update(first.ID, func(e *models.Enrollment) {
		e.Status = models.EnrollmentLinked
		e.UID = "29115803"
	})
	if !ok || updated.UID != "29115803" {
		t.Fatalf("Expected update to apply, got %+v", updated)
	}
	if _, ok := s.Active(); ok {
		t.Error("Expected no active enrollment once linked")
	}

	second := s.Create("A0002", "Luis")
	all := s.GetAll()
	if len(all) != 2 || all[0].ID != first.ID || all[1].ID != second.ID {
		t.Errorf("Expected both enrollments oldest first, got %+v", all)
	}

	if active, ok := s.Active(); !ok || active.ID != second.ID {
		t.Errorf("Expected %s to be active, got %+v", second.ID, active)
	}
	if _, ok := s.Update("missing", func(*models.Enrollment) {}); ok {
		t.Error("Expected update of unknown id to fail")
	}
}

func TestEnrollmentStoreReturnsCopies(t *testing.T) {
	s := New()
	e := s.Create("A0001", "Ana")
	e.Status = models.EnrollmentFailed

	got, _ := s.Get(e.ID)
	if got.Status != models.EnrollmentCapturing {
		t.Errorf("Expected stored status untouched, got %s", got.Status)
	}
}
