// Package model defines the rows persisted by the portal database.
package model

import "time"

type Role string

const (
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusOnboarding Status = "Onboarding"
	StatusActive     Status = "Active"
)

const DefaultProgress = 10

// Session is the authenticated state held by the session store. Role is
// derived from the email address and is not a verified claim. SID
// identifies one sign-in; a user signed in from two browsers holds two
// sessions with the same UID.
type Session struct {
	LoggedIn bool   `json:"isLoggedIn"`
	Role     Role   `json:"role"`
	UID      string `json:"uid"`
	Email    string `json:"email"`
	SID      string `json:"sid"`
}

// Account is a credential held by the local identity provider.
type Account struct {
	Id           string    `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Employee is an onboarding record. Status and Progress may be absent on
// records written by other clients of the store.
type Employee struct {
	Id         string    `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" form:"name"`
	Email      string    `json:"email" form:"email"`
	Department string    `json:"department" form:"department"`
	Position   string    `json:"position" form:"position"`
	StartDate  string    `json:"startDate" form:"startDate"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuditLog records who did what from where.
type AuditLog struct {
	ID         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UID        string    `json:"uid" gorm:"index"`
	Email      string    `json:"email"`
	Action     string    `json:"action" gorm:"index"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"userAgent"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}
