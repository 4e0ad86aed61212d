package capture

import (
	"errors"
	"fmt"
	"slices"
)

// Phase is the externally visible stage of a capture session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingReads
	// PhaseVerifying is entered and left within the step that compares the
	// third reading, so no Phase() or Snapshot ever reports it.
	PhaseVerifying
	PhaseAccepted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingReads:
		return "awaiting_reads"
	case PhaseVerifying:
		return "verifying"
	case PhaseAccepted:
		return "accepted"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseAwaitingReads, PhaseVerifying, PhaseAccepted} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Outcome describes what a completed burst did to the session.
type Outcome int

const (
	// OutcomeIgnored: the session no longer collects reads.
	OutcomeIgnored Outcome = iota
	// OutcomeIncomplete: burst too short, treated as still typing.
	OutcomeIncomplete
	// OutcomeMalformed: burst rejected by the validator, no progress.
	OutcomeMalformed
	// OutcomeRead: one more reading stored, fewer than three so far.
	OutcomeRead
	// OutcomeAccepted: third reading agreed with the other two.
	OutcomeAccepted
	// OutcomeRejected: three readings disagreed and were discarded.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeRead:
		return "read"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Messages shown to the operator.
const (
	MalformedMessage = "Invalid card read. Tap the card again."
	MismatchMessage  = "Inconsistent readings. Re-scan the card three times."
)

// state is one of idle, awaiting or accepted.
type state interface {
	phase() Phase
}

type idle struct{}

type awaiting struct {
	readings []UID
}

type accepted struct {
	readings []UID
	uid      UID
}

func (idle) phase() Phase     { return PhaseIdle }
func (awaiting) phase() Phase { return PhaseAwaitingReads }
func (accepted) phase() Phase { return PhaseAccepted }

// Session tracks one enrollment attempt for one target.
// It is not safe for concurrent use; the Controller owns it.
type Session struct {
	target    string
	uidLength int
	state     state
	pending   string
	lastError string
	saving    bool
}

// NewSession returns a freshly opened session with no readings.
func NewSession(target string, uidLength int) *Session {
	if uidLength <= 0 {
		uidLength = DefaultUIDLength
	}
	return &Session{
		target:    target,
		uidLength: uidLength,
		state:     idle{},
	}
}

func (s *Session) Target() string {
	return s.target
}

func (s *Session) Phase() Phase {
	return s.state.phase()
}

// Readings returns a copy of the accepted readings in arrival order.
func (s *Session) Readings() []UID {
	switch st := s.state.(type) {
	case awaiting:
		return slices.Clone(st.readings)
	case accepted:
		return slices.Clone(st.readings)
	}
	return nil
}

// UID returns the agreed identifier once the session is accepted.
func (s *Session) UID() (UID, bool) {
	if st, ok := s.state.(accepted); ok {
		return st.uid, true
	}
	return "", false
}

func (s *Session) LastError() string {
	return s.lastError
}

func (s *Session) Pending() string {
	return s.pending
}

func (s *Session) Saving() bool {
	return s.saving
}

// SetSaving freezes the session while the caller persists an accepted UID.
func (s *Session) SetSaving(saving bool) {
	s.saving = saving
}

// Collecting reports whether raw input may still produce readings.
func (s *Session) Collecting() bool {
	if s.saving {
		return false
	}
	_, done := s.state.(accepted)
	return !done
}

// Input records the field's current value. It returns false when the session
// no longer collects reads, in which case the caller should drain the field.
func (s *Session) Input(value string) bool {
	if !s.Collecting() {
		s.pending = ""
		return false
	}
	if s.pending == "" && value != "" {
		s.lastError = ""
	}
	s.pending = value
	return true
}

// Complete processes the pending buffer as a finished burst.
func (s *Session) Complete() Outcome {
	if !s.Collecting() {
		s.pending = ""
		return OutcomeIgnored
	}

	uid, err := Validate(s.pending, s.uidLength)
	switch {
	case errors.Is(err, ErrIncomplete):
		return OutcomeIncomplete
	case err != nil:
		s.pending = ""
		s.lastError = MalformedMessage
		return OutcomeMalformed
	}
	s.pending = ""

	readings := append(s.Readings(), uid)
	if len(readings) < RequiredReads {
		s.state = awaiting{readings: readings}
		return OutcomeRead
	}

	if agreed, ok := Verify(readings); ok {
		s.state = accepted{readings: readings, uid: agreed}
		return OutcomeAccepted
	}
	s.state = awaiting{}
	s.lastError = MismatchMessage
	return OutcomeRejected
}

// Snapshot is a read-only view of a session for display.
type Snapshot struct {
	Open      bool   `json:"open"`
	Target    string `json:"target,omitempty"`
	Phase     Phase  `json:"phase"`
	Readings  []UID  `json:"readings"`
	Count     int    `json:"count"`
	Required  int    `json:"required"`
	Pending   string `json:"pending,omitempty"`
	LastError string `json:"last_error,omitempty"`
	UID       UID    `json:"uid,omitempty"`
	Saving    bool   `json:"saving"`
}

func (s *Session) Snapshot() Snapshot {
	readings := s.Readings()
	if readings == nil {
		readings = []UID{}
	}
	uid, _ := s.UID()
	return Snapshot{
		Open:      true,
		Target:    s.target,
		Phase:     s.Phase(),
		Readings:  readings,
		Count:     len(readings),
		Required:  RequiredReads,
		Pending:   s.pending,
		LastError: s.lastError,
		UID:       uid,
		Saving:    s.saving,
	}
}
