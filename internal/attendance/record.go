package attendance

import (
	"errors"
	"fmt"
	"time"
)

// StatusPresent is the only attendance status recorded today.
const StatusPresent = "present"

// Record is one student's attendance for one civil day. Records are never updated.
type Record struct {
	ID         string    `json:"id"`
	StudentID  int64     `json:"student_id"`
	Date       string    `json:"date"`
	RecordedAt time.Time `json:"recorded_at"`
	TokenValue string    `json:"-"`
	Status     string    `json:"status"`

	// Snapshot of the student at record time.
	StudentName string `json:"student_name"`
	Class       string `json:"class"`
	Department  string `json:"department"`

	// NIS is joined from the live students row on reads.
	NIS string `json:"nis,omitempty"`
}

// Student is the part of a student row the recorder snapshots.
type Student struct {
	ID         int64
	NIS        string
	Name       string
	Class      string
	Department string
}

// Error classes carried by non-recorded outcomes.
var (
	ErrValidation    = errors.New("validation")
	ErrAuthorization = errors.New("authorization")
	ErrConflict      = errors.New("conflict")
)

// Result discriminates submission outcomes.
type Result string

const (
	Recorded  Result = "recorded"
	Duplicate Result = "duplicate"
	Rejected  Result = "rejected"
)

// Rejection and duplicate reasons.
const (
	ReasonEmptyToken       = "empty token"
	ReasonInvalidStudent   = "invalid student id"
	ReasonUnknownToken     = "invalid or unknown token"
	ReasonExpired          = "expired"
	ReasonUnknownStudent   = "unknown student"
	ReasonAlreadyAttending = "already recorded today"
)

// Outcome is the result of a submission. Err is nil only for Recorded and
// wraps ErrValidation, ErrAuthorization or ErrConflict otherwise.
type Outcome struct {
	Result Result
	Reason string
	Err    error
	Record *Record
}

func rejected(class error, reason string) Outcome {
	return Outcome{Result: Rejected, Reason: reason, Err: fmt.Errorf("%w: %s", class, reason)}
}

func duplicate() Outcome {
	return Outcome{
		Result: Duplicate,
		Reason: ReasonAlreadyAttending,
		Err:    fmt.Errorf("%w: %s", ErrConflict, ReasonAlreadyAttending),
	}
}
