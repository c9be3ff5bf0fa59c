package model

import "time"

// DeviceView is the API view of a device.
type DeviceView struct {
	DeviceID         string    `json:"device_id"`
	DeviceName       string    `json:"device_name"`
	DeviceType       string    `json:"device_type"`
	OwnerID          string    `json:"owner_id"`
	CurrentGroupID   *string   `json:"current_group_id"`
	DeviceIdentifier *string   `json:"device_identifier,omitempty"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	LastSeen         time.Time `json:"last_seen"`
}

// RegisterDeviceRequest is the body for POST /devices/register.
type RegisterDeviceRequest struct {
	DeviceName       string `json:"device_name" binding:"required"`
	DeviceType       string `json:"device_type" binding:"required,oneof=mobile web"`
	DeviceIdentifier string `json:"device_identifier"`
}

// GenerateInviteRequest is the body for POST /generate-qr.
type GenerateInviteRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// Invite is the response for POST /generate-qr, carried out of band (QR).
type Invite struct {
	SessionID   string `json:"session_id"`
	GroupID     string `json:"group_id"`
	GroupName   string `json:"group_name"`
	InviterName string `json:"inviter_name"`
}

// RedeemInviteRequest is the body for POST /pair-device.
type RedeemInviteRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	DeviceID  string `json:"device_id" binding:"required"`
}

// GroupSnapshot is the group state returned after pairing.
type GroupSnapshot struct {
	GroupID   string    `json:"group_id"`
	GroupName string    `json:"group_name"`
	DeviceIDs []string  `json:"device_ids"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaveGroupRequest is the body for POST /leave-group.
type LeaveGroupRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// ActiveGroup is the response for GET /my-group.
type ActiveGroup struct {
	Group          *GroupSnapshot `json:"group"`
	DevicesInGroup []DeviceView   `json:"devices_in_group"`
}

// DeviceToView converts a Device entity to its API view.
func DeviceToView(d *Device) DeviceView {
	return DeviceView{
		DeviceID:         d.ID,
		DeviceName:       d.Name,
		DeviceType:       d.Type,
		OwnerID:          d.OwnerID,
		CurrentGroupID:   d.GroupID,
		DeviceIdentifier: d.Identifier,
		IsActive:         d.IsActive,
		CreatedAt:        d.CreatedAt,
		LastSeen:         d.LastSeen,
	}
}
