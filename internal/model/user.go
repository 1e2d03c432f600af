package model

import "time"

// Role separates the household owner from helpers.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleHelper Role = "helper"
)

// User is a household member.
type User struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex"`
	Role       Role
	PIN        string
	TelegramID int64 `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
