package models

import "time"

// Student is a person a card can be linked to, keyed by enrollment number.
type Student struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name"`
	Card      *Card     `json:"card,omitempty" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
}

// Card links a physical card UID to exactly one student.
type Card struct {
	UID       string    `json:"uid" gorm:"primaryKey;size:50"`
	StudentID string    `json:"student_id" gorm:"uniqueIndex;not null;size:32"`
	CreatedAt time.Time `json:"created_at"`
}

// Access is one card tap at the access kiosk. Day is the local calendar date
// (YYYY-MM-DD) used for the one-access-per-day rule.
type Access struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CardUID    string    `json:"uid" gorm:"index:idx_access_day,unique;not null;size:50"`
	Day        string    `json:"day" gorm:"index:idx_access_day,unique;not null;size:10"`
	RecordedAt time.Time `json:"recorded_at"`
}

// EnrollmentStatus is where a web station enrollment attempt stands.
type EnrollmentStatus string

const (
	EnrollmentCapturing EnrollmentStatus = "capturing"
	EnrollmentSaving    EnrollmentStatus = "saving"
	EnrollmentLinked    EnrollmentStatus = "linked"
	EnrollmentFailed    EnrollmentStatus = "failed"
	EnrollmentClosed    EnrollmentStatus = "closed"
)

// Enrollment records one attempt to link a card on the web station.
type Enrollment struct {
	ID          string           `json:"id"`
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	Status      EnrollmentStatus `json:"status"`
	UID         string           `json:"uid,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Active reports whether the attempt still owns the capture station.
func (e *Enrollment) Active() bool {
	return e.Status == EnrollmentCapturing || e.Status == EnrollmentSaving
}
