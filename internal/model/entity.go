package model

import "time"

// DeviceType distinguishes the mobile monitor app from the web owner client.
const (
	DeviceTypeMobile = "mobile"
	DeviceTypeWeb    = "web"
)

// Device is a registered client device (GORM).
type Device struct {
	ID         string  `gorm:"type:uuid;primaryKey"`
	Name       string  `gorm:"size:120;not null"`
	OwnerID    string  `gorm:"size:128;not null;index"`
	GroupID    *string `gorm:"type:uuid;index"`
	Type       string  `gorm:"size:10;not null"`
	Identifier *string `gorm:"size:128;index"` // stable across reinstalls
	IsActive   bool    `gorm:"not null;default:true"`
	CreatedAt  time.Time
	LastSeen   time.Time `gorm:"index"`
}

func (Device) TableName() string { return "devices" }

// PairingGroup is an exclusive device group (GORM). Membership is derived:
// all devices whose group_id points here. A group with zero members is
// deleted by the operation that empties it.
type PairingGroup struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"size:120;not null"`
	CreatedBy string `gorm:"size:128;not null"`
	CreatedAt time.Time
}

func (PairingGroup) TableName() string { return "pairing_groups" }

// PairingSession is a single-use QR handshake token (GORM). Deleted on first
// redemption or on first access past ExpiresAt; there is no background sweeper.
type PairingSession struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	GroupID   string `gorm:"type:uuid;not null;index"`
	CreatedBy string `gorm:"size:128;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time
}

func (PairingSession) TableName() string { return "pairing_sessions" }

// RoomAttachment is the durable per-connection role record for a room (GORM).
// Role state must live here, not in a process-local map: the serving room
// instance may be dropped and recreated between events, and every decision
// reconstructs state by scanning these rows.
type RoomAttachment struct {
	ConnID    string `gorm:"type:uuid;primaryKey"`
	RoomID    string `gorm:"size:128;not null;index"`
	Role      string `gorm:"size:12;not null"`
	CreatedAt time.Time
}

func (RoomAttachment) TableName() string { return "room_attachments" }
