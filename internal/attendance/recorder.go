package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"qrattend/internal/clock"
	"qrattend/internal/logger"
	"qrattend/internal/metrics"
	"qrattend/internal/queue"
	"qrattend/internal/token"
)

// Tokens is the token store as seen by the recorder.
type Tokens interface {
	FetchActive(ctx context.Context, value string) (*token.Token, error)
	Expire(ctx context.Context, value string) (bool, error)
}

// Ledger persists attendance and exposes student snapshots.
type Ledger interface {
	Student(ctx context.Context, id int64) (*Student, error)
	InsertIfAbsent(ctx context.Context, rec Record) (bool, error)
}

// RecordedEvent is the payload of an attendance.recorded message.
type RecordedEvent struct {
	RecordID    string    `json:"record_id"`
	StudentID   int64     `json:"student_id"`
	Date        string    `json:"date"`
	RecordedAt  time.Time `json:"recorded_at"`
	TokenPrefix string    `json:"token_prefix"`
}

// Options tune the recorder.
type Options struct {
	// SingleUse expires a token after its first recorded submission.
	SingleUse      bool
	// PublishTimeout bounds the wait on the event backend; zero means queue.DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// Recorder validates submitted tokens and writes attendance. It keeps no state between calls.
type Recorder struct {
	tokens Tokens
	ledger Ledger
	clock  clock.Clock
	events token.Publisher
	opts   Options
}

// NewRecorder wires a recorder; events may be nil.
func NewRecorder(tokens Tokens, ledger Ledger, clk clock.Clock, events token.Publisher, opts Options) *Recorder {
	return &Recorder{tokens: tokens, ledger: ledger, clock: clk, events: events, opts: opts}
}

// Submit records attendance for studentID using tokenValue.
// Expected conditions come back as an Outcome; a non-nil error is a storage failure.
func (s *Recorder) Submit(ctx context.Context, studentID int64, tokenValue string) (Outcome, error) {
	out, err := s.submit(ctx, studentID, tokenValue)
	if err != nil {
		return Outcome{}, err
	}
	metrics.Submissions.WithLabelValues(string(out.Result), out.Reason).Inc()
	return out, nil
}

func (s *Recorder) submit(ctx context.Context, studentID int64, tokenValue string) (Outcome, error) {
	if strings.TrimSpace(tokenValue) == "" {
		return rejected(ErrValidation, ReasonEmptyToken), nil
	}
	if studentID <= 0 {
		return rejected(ErrValidation, ReasonInvalidStudent), nil
	}
	log := logger.WithFields(logrus.Fields{
		"student_id":   studentID,
		"token_prefix": logger.TokenPrefix(tokenValue),
	})

	tok, err := s.tokens.FetchActive(ctx, tokenValue)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("fetch_token").Inc()
		return Outcome{}, err
	}
	if tok == nil {
		return rejected(ErrAuthorization, ReasonUnknownToken), nil
	}

	now := s.clock.Now()
	if tok.ExpiredAt(now) {
		// status still reads active; bring it in line with the clock
		if flipped, err := s.tokens.Expire(ctx, tok.Value); err != nil {
			log.WithError(err).Warn("lazy token expiry failed")
		} else if flipped {
			metrics.TokensExpired.WithLabelValues(metrics.TriggerLazy).Inc()
		}
		return rejected(ErrAuthorization, ReasonExpired), nil
	}

	student, err := s.ledger.Student(ctx, studentID)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("fetch_student").Inc()
		return Outcome{}, err
	}
	if student == nil {
		return rejected(ErrValidation, ReasonUnknownStudent), nil
	}

	rec := Record{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		Date:        clock.Date(now),
		RecordedAt:  now,
		TokenValue:  tok.Value,
		Status:      StatusPresent,
		StudentName: student.Name,
		Class:       student.Class,
		Department:  student.Department,
		NIS:         student.NIS,
	}
	inserted, err := s.ledger.InsertIfAbsent(ctx, rec)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("insert_attendance").Inc()
		return Outcome{}, err
	}
	if !inserted {
		log.Debug("attendance already recorded today")
		return duplicate(), nil
	}

	if s.opts.SingleUse {
		if flipped, err := s.tokens.Expire(ctx, tok.Value); err != nil {
			log.WithError(err).Warn("single-use token expiry failed")
		} else if flipped {
			metrics.TokensExpired.WithLabelValues(metrics.TriggerUsed).Inc()
		}
	}
	s.publish(ctx, rec, log)
	log.WithField("record_id", rec.ID).Info("attendance recorded")

	return Outcome{Result: Recorded, Record: &rec}, nil
}

func (s *Recorder) publish(ctx context.Context, rec Record, log *logrus.Entry) {
	if s.events == nil {
		return
	}
	msg, err := queue.NewMessage(queue.TypeAttendanceRecorded, rec.RecordedAt, RecordedEvent{
		RecordID:    rec.ID,
		StudentID:   rec.StudentID,
		Date:        rec.Date,
		RecordedAt:  rec.RecordedAt,
		TokenPrefix: logger.TokenPrefix(rec.TokenValue),
	})
	if err == nil {
		err = queue.PublishDetached(ctx, s.events, msg, s.opts.PublishTimeout)
	}
	if err != nil {
		log.WithError(err).Warn("publish attendance.recorded failed")
	}
}
