package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RolePatient       Role = "patient"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleAdmin         Role = "admin"
	RolePharmacist    Role = "pharmacist"
	RoleLabTechnician Role = "lab_technician"
	RoleLabScientist  Role = "lab_scientist"
	RoleReceptionist  Role = "receptionist"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleNurse, RoleAdmin, RolePharmacist,
		RoleLabTechnician, RoleLabScientist, RoleReceptionist:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"                json:"id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null"       json:"email"`
	PasswordHash string     `gorm:"not null"                            json:"-"`
	FirstName    string     `gorm:"size:100;not null"                   json:"firstName"`
	LastName     string     `gorm:"size:100;not null"                   json:"lastName"`
	Phone        string     `gorm:"size:32"                             json:"phone"`
	Gender       Gender     `gorm:"size:16"                             json:"gender"`
	Location     string     `gorm:"size:255"                            json:"location,omitempty"`
	Role         Role       `gorm:"size:32;not null;default:patient"    json:"role"`
	IsActive     bool       `gorm:"not null;default:true"               json:"isActive"`
	AuthProvider string     `gorm:"size:16;not null;default:local"      json:"authProvider"`
	LastLoginAt  *time.Time `                                           json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `                                           json:"createdAt"`
	UpdatedAt    time.Time  `                                           json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type RefreshToken struct {
	ID          uint       `gorm:"primaryKey"                                  json:"id"`
	TokenHash   string     `gorm:"size:64;uniqueIndex;not null"                json:"-"`
	UserID      uuid.UUID  `gorm:"type:uuid;index;not null"                    json:"userId"`
	User        User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ExpiresAt   time.Time  `gorm:"index;not null"                              json:"expiresAt"`
	Revoked     bool       `gorm:"not null;default:false"                      json:"revoked"`
	RevokedAt   *time.Time `                                                   json:"revokedAt,omitempty"`
	RevokedByIP string     `gorm:"size:64"                                     json:"-"`
	RotatedFrom string     `gorm:"size:64;index"                               json:"-"`
	CreatedByIP string     `gorm:"size:64"                                     json:"createdByIp"`
	UserAgent   string     `gorm:"size:255"                                    json:"userAgent"`
	CreatedAt   time.Time  `                                                   json:"createdAt"`
	UpdatedAt   time.Time  `                                                   json:"updatedAt"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
