package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleAdmin         UserRole = "admin"
	RoleSupervisor    UserRole = "supervisor"
	RoleSubcontractor UserRole = "subcontractor"
)

type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityBusy      AvailabilityStatus = "busy"
	AvailabilityAway      AvailabilityStatus = "away"
)

type User struct {
	BaseUUIDModel
	ChatID    int64      `gorm:"type:bigint;uniqueIndex;not null" json:"chatId"`
	Username  *string    `gorm:"type:text"                        json:"username,omitempty"`
	FirstName *string    `gorm:"type:text"                        json:"firstName,omitempty"`
	Role      UserRole   `gorm:"type:text;not null"               json:"role"`
	TeamID    *uuid.UUID `gorm:"type:uuid;index"                  json:"teamId,omitempty"`
	Team      *Team      `gorm:"foreignKey:TeamID"                json:"team,omitempty"`

	AccessCodeID *uuid.UUID `gorm:"type:uuid"              json:"accessCodeId,omitempty"`
	IsActive     bool       `gorm:"type:bool;default:true" json:"isActive"`

	// Availability gates broadcast dispatch. A NULL value is treated as
	// available: the column was added after users already existed, and it is
	// ambiguous whether the opt-in default was intentional. The observed
	// behavior is preserved rather than fixed.
	Availability *AvailabilityStatus `gorm:"type:text" json:"availability,omitempty"`
}

// EligibleForBroadcast reports whether a broadcast-dispatched job should
// reach this user.
func (u *User) EligibleForBroadcast() bool {
	if u.Role != RoleSubcontractor || !u.IsActive {
		return false
	}
	return u.Availability == nil || *u.Availability == AvailabilityAvailable
}

type Team struct {
	BaseUUIDModel
	Name string `gorm:"type:text;uniqueIndex;not null" json:"name"`
}

type AccessCode struct {
	BaseUUIDModel
	Code        string     `gorm:"type:text;uniqueIndex;not null" json:"code"`
	Role        UserRole   `gorm:"type:text;not null"             json:"role"`
	TeamID      *uuid.UUID `gorm:"type:uuid"                      json:"teamId,omitempty"`
	IsActive    bool       `gorm:"type:bool;default:true"         json:"isActive"`
	MaxUses     int        `gorm:"type:integer;default:1"         json:"maxUses"`
	CurrentUses int        `gorm:"type:integer;default:0"         json:"currentUses"`
	ExpiresAt   *time.Time `gorm:"type:timestamp"                 json:"expiresAt,omitempty"`
}

// Usable reports whether the code can still register a user at the given time.
func (c *AccessCode) Usable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.MaxUses > 0 && c.CurrentUses >= c.MaxUses {
		return false
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return false
	}
	return true
}
