package models

import (
	"time"

	"github.com/google/uuid"
)

// WeeklyAvailabilitySurvey is a per-subcontractor, per-week questionnaire the
// scheduler sends out ahead of each work week. One row exists per
// (subcontractor, week_start) pair; creation is idempotent.
type WeeklyAvailabilitySurvey struct {
	BaseUUIDModel
	SubcontractorID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_survey_sub_week" json:"subcontractorId"`
	Subcontractor   *User     `gorm:"foreignKey:SubcontractorID"                         json:"subcontractor,omitempty"`
	WeekStart       time.Time `gorm:"type:date;not null;uniqueIndex:idx_survey_sub_week" json:"weekStart"`

	Monday    bool `gorm:"type:bool;default:false" json:"monday"`
	Tuesday   bool `gorm:"type:bool;default:false" json:"tuesday"`
	Wednesday bool `gorm:"type:bool;default:false" json:"wednesday"`
	Thursday  bool `gorm:"type:bool;default:false" json:"thursday"`
	Friday    bool `gorm:"type:bool;default:false" json:"friday"`

	Notes       *string    `gorm:"type:text"      json:"notes,omitempty"`
	RespondedAt *time.Time `gorm:"type:timestamp" json:"respondedAt,omitempty"`
}

// Answered distinguishes answered surveys from outstanding ones.
func (s *WeeklyAvailabilitySurvey) Answered() bool {
	return s.RespondedAt != nil
}

// NextWeekStart returns the Monday strictly after t, truncated to a UTC date.
func NextWeekStart(t time.Time) time.Time {
	t = t.UTC()
	days := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	next := t.AddDate(0, 0, days)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
}
