package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobType string

const (
	JobTypeQuote       JobType = "quote"
	JobTypePresetPrice JobType = "preset_price"
)

type JobStatus string

const (
	JobStatusCreated    JobStatus = "created"
	JobStatusSent       JobStatus = "sent"
	JobStatusAccepted   JobStatus = "accepted"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusArchived   JobStatus = "archived"
)

// IsTerminal reports whether no further transition may leave the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusArchived
}

type Job struct {
	BaseUUIDModel
	Title       string  `gorm:"type:text;not null" json:"title"`
	Description *string `gorm:"type:text"          json:"description,omitempty"`
	Address     *string `gorm:"type:text"          json:"address,omitempty"`

	JobType     JobType   `gorm:"type:text;not null"             json:"jobType"`
	PresetPrice *string   `gorm:"type:text"                      json:"presetPrice,omitempty"`
	Status      JobStatus `gorm:"type:text;default:created;index" json:"status"`

	TeamID          *uuid.UUID `gorm:"type:uuid;index"           json:"teamId,omitempty"`
	SupervisorID    uuid.UUID  `gorm:"type:uuid;not null;index"  json:"supervisorId"`
	SubcontractorID *uuid.UUID `gorm:"type:uuid;index"           json:"subcontractorId,omitempty"`
	Supervisor      *User      `gorm:"foreignKey:SupervisorID"   json:"supervisor,omitempty"`
	Subcontractor   *User      `gorm:"foreignKey:SubcontractorID" json:"subcontractor,omitempty"`

	// Non-owning pointer to the winning quote; the quote row itself belongs
	// to the job's quote set.
	AcceptedQuoteID *uuid.UUID `gorm:"type:uuid" json:"acceptedQuoteId,omitempty"`

	Photos   datatypes.JSON `gorm:"type:json" json:"photos,omitempty"`
	Evidence datatypes.JSON `gorm:"type:json" json:"evidence,omitempty"`

	DeclineReason   *string `gorm:"type:text" json:"declineReason,omitempty"`
	RevisionNote    *string `gorm:"type:text" json:"revisionNote,omitempty"`
	SubmissionNotes *string `gorm:"type:text" json:"submissionNotes,omitempty"`

	Deadline             *time.Time `gorm:"type:timestamp"          json:"deadline,omitempty"`
	ReminderSent         bool       `gorm:"type:bool;default:false" json:"reminderSent"`
	ReminderSentAt       *time.Time `gorm:"type:timestamp"          json:"reminderSentAt,omitempty"`
	DeadlineReminderSent bool       `gorm:"type:bool;default:false" json:"deadlineReminderSent"`

	Rating        *int    `gorm:"type:integer" json:"rating,omitempty"`
	RatingComment *string `gorm:"type:text"    json:"ratingComment,omitempty"`

	SentAt      *time.Time `gorm:"type:timestamp" json:"sentAt,omitempty"`
	AcceptedAt  *time.Time `gorm:"type:timestamp" json:"acceptedAt,omitempty"`
	StartedAt   *time.Time `gorm:"type:timestamp" json:"startedAt,omitempty"`
	SubmittedAt *time.Time `gorm:"type:timestamp" json:"submittedAt,omitempty"`
	CompletedAt *time.Time `gorm:"type:timestamp" json:"completedAt,omitempty"`
	CancelledAt *time.Time `gorm:"type:timestamp" json:"cancelledAt,omitempty"`
	ArchivedAt  *time.Time `gorm:"type:timestamp" json:"archivedAt,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if err := j.BaseUUIDModel.BeforeCreate(tx); err != nil {
		return err
	}
	if j.Title == "" {
		return gorm.ErrInvalidValue
	}
	switch j.JobType {
	case JobTypeQuote:
		// Quote jobs are priced by arbitration, never up front.
		if j.PresetPrice != nil {
			return gorm.ErrInvalidValue
		}
	case JobTypePresetPrice:
		if j.PresetPrice == nil || *j.PresetPrice == "" {
			return gorm.ErrInvalidValue
		}
	default:
		return gorm.ErrInvalidValue
	}
	if j.Status == "" {
		j.Status = JobStatusCreated
	}
	return nil
}

// AcceptsQuotes reports whether quote submission and arbitration are open.
func (j *Job) AcceptsQuotes() bool {
	return j.JobType == JobTypeQuote && j.Status == JobStatusSent
}

type Quote struct {
	BaseUUIDModel
	JobID           uuid.UUID `gorm:"type:uuid;not null;index"   json:"jobId"`
	SubcontractorID uuid.UUID `gorm:"type:uuid;not null;index"   json:"subcontractorId"`
	Subcontractor   *User     `gorm:"foreignKey:SubcontractorID" json:"subcontractor,omitempty"`

	Amount string  `gorm:"type:text;not null" json:"amount"`
	Notes  *string `gorm:"type:text"          json:"notes,omitempty"`

	IsAccepted    bool    `gorm:"type:bool;default:false" json:"isAccepted"`
	IsDeclined    bool    `gorm:"type:bool;default:false" json:"isDeclined"`
	DeclineReason *string `gorm:"type:text"               json:"declineReason,omitempty"`

	SubmittedAt time.Time `gorm:"type:timestamp;not null" json:"submittedAt"`
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if err := q.BaseUUIDModel.BeforeCreate(tx); err != nil {
		return err
	}
	if q.Amount == "" {
		return gorm.ErrInvalidValue
	}
	if q.SubmittedAt.IsZero() {
		q.SubmittedAt = time.Now().UTC()
	}
	return nil
}

// IsActive reports whether the quote blocks its bidder from resubmitting.
// Declined quotes free the bidder; accepted quotes are terminal.
func (q *Quote) IsActive() bool {
	return !q.IsDeclined
}
