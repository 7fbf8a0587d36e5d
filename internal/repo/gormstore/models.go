package gormstore

import (
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/token"
	"github.com/geocoder89/usermgmt/internal/domain/user"
)

// Column names match the SQL the pgx repositories run, so either driver
// works against a schema migrated from these models.

type UserModel struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"size:100;not null"`
	Email        string    `gorm:"size:150;uniqueIndex;not null"`
	Phone        string    `gorm:"size:15;uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	ProfileImage *string   `gorm:"size:512"`
	Address      *string   `gorm:"size:150"`
	State        string    `gorm:"size:50;not null;index"`
	City         string    `gorm:"size:50;not null;index"`
	Country      string    `gorm:"size:50;not null;index"`
	Pincode      string    `gorm:"size:10;not null"`
	Role         string    `gorm:"type:varchar(10);not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

func (m UserModel) toDomain() user.User {
	return user.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		PasswordHash: m.PasswordHash,
		ProfileImage: m.ProfileImage,
		Address:      m.Address,
		State:        m.State,
		City:         m.City,
		Country:      m.Country,
		Pincode:      m.Pincode,
		Role:         user.Role(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func userModelFrom(u user.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		ProfileImage: u.ProfileImage,
		Address:      u.Address,
		State:        u.State,
		City:         u.City,
		Country:      u.Country,
		Pincode:      u.Pincode,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type RefreshTokenModel struct {
	ID         string     `gorm:"primaryKey;size:64"`
	UserID     int64      `gorm:"not null;index"`
	User       *UserModel `gorm:"constraint:OnDelete:CASCADE"`
	TokenHash  string     `gorm:"size:128;not null"`
	ExpiresAt  time.Time  `gorm:"not null"`
	RevokedAt  *time.Time
	ReplacedBy *string `gorm:"size:64"`
	CreatedAt  time.Time
}

func (RefreshTokenModel) TableName() string { return "refresh_tokens" }

func (m RefreshTokenModel) toDomain() token.Refresh {
	return token.Refresh{
		ID:         m.ID,
		UserID:     m.UserID,
		TokenHash:  m.TokenHash,
		ExpiresAt:  m.ExpiresAt,
		RevokedAt:  m.RevokedAt,
		ReplacedBy: m.ReplacedBy,
		CreatedAt:  m.CreatedAt,
	}
}

func refreshModelFrom(r token.Refresh) RefreshTokenModel {
	return RefreshTokenModel{
		ID:         r.ID,
		UserID:     r.UserID,
		TokenHash:  r.TokenHash,
		ExpiresAt:  r.ExpiresAt,
		RevokedAt:  r.RevokedAt,
		ReplacedBy: r.ReplacedBy,
		CreatedAt:  r.CreatedAt,
	}
}

type JobModel struct {
	ID          string     `gorm:"primaryKey;size:64"`
	Type        string     `gorm:"size:64;not null"`
	Payload     []byte     `gorm:"type:jsonb;not null"`
	Status      string     `gorm:"size:20;not null;index:idx_jobs_status_run_at,priority:1"`
	Attempts    int        `gorm:"not null"`
	MaxAttempts int        `gorm:"not null"`
	RunAt       time.Time  `gorm:"not null;index:idx_jobs_status_run_at,priority:2"`
	LockedAt    *time.Time `gorm:"index"`
	LockedBy    *string    `gorm:"size:128"`
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (JobModel) TableName() string { return "jobs" }
