package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mixtura/petube/internal/errs"
	"github.com/mixtura/petube/internal/model"
	"github.com/mixtura/petube/internal/partition"
)

// PairingRegistry owns the relational records for devices, groups and QR
// pairing sessions. Group membership is exclusive: a device belongs to at
// most one group, and an emptied group is deleted by the operation that
// emptied it. All operations run under the global partition key, so the
// multi-step read-then-write sequences below never interleave.
type PairingRegistry struct {
	db         *gorm.DB
	parts      *partition.Router
	log        *zap.Logger
	sessionTTL time.Duration
}

// NewPairingRegistry creates a pairing registry.
func NewPairingRegistry(db *gorm.DB, parts *partition.Router, log *zap.Logger, sessionTTL time.Duration) *PairingRegistry {
	return &PairingRegistry{db: db, parts: parts, log: log, sessionTTL: sessionTTL}
}

// RegisterDevice creates a device, or reactivates the existing row when the
// (owner, identifier) pair matches: name, last_seen and is_active are
// refreshed, device id and group membership are preserved.
func (r *PairingRegistry) RegisterDevice(ownerID, name, devType, identifier string) (*model.Device, error) {
	var out *model.Device
	err := r.parts.Do(partition.GlobalKey, func() error {
		now := time.Now()
		if identifier != "" {
			var existing model.Device
			err := r.db.Where("owner_id = ? AND identifier = ?", ownerID, identifier).
				First(&existing).Error
			if err == nil {
				updates := map[string]interface{}{
					"name":      name,
					"last_seen": now,
					"is_active": true,
				}
				if err := r.db.Model(&existing).Updates(updates).Error; err != nil {
					return err
				}
				existing.Name = name
				existing.LastSeen = now
				existing.IsActive = true
				out = &existing
				r.log.Info("device reactivated",
					zap.String("device_id", existing.ID),
					zap.String("owner_id", ownerID))
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		dev := &model.Device{
			ID:        uuid.New().String(),
			Name:      name,
			OwnerID:   ownerID,
			Type:      devType,
			IsActive:  true,
			CreatedAt: now,
			LastSeen:  now,
		}
		if identifier != "" {
			dev.Identifier = &identifier
		}
		if err := r.db.Create(dev).Error; err != nil {
			return err
		}
		out = dev
		r.log.Info("device registered",
			zap.String("device_id", dev.ID),
			zap.String("owner_id", ownerID),
			zap.String("device_type", devType))
		return nil
	})
	return out, err
}

// ListDevices returns the owner's devices, most recently seen first.
func (r *PairingRegistry) ListDevices(ownerID string) ([]model.Device, error) {
	var devices []model.Device
	err := r.parts.Do(partition.GlobalKey, func() error {
		return r.db.Where("owner_id = ?", ownerID).
			Order("last_seen DESC").
			Find(&devices).Error
	})
	return devices, err
}

// GenerateInvite creates a single-use pairing session for the device's
// group, creating the group first if the device is ungrouped. Expired
// sessions are swept opportunistically on the way.
func (r *PairingRegistry) GenerateInvite(deviceID, ownerID string) (*model.Invite, error) {
	var out *model.Invite
	err := r.parts.Do(partition.GlobalKey, func() error {
		dev, err := r.ownedDevice(deviceID, ownerID)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := r.db.Where("expires_at < ?", now).
			Delete(&model.PairingSession{}).Error; err != nil {
			return err
		}

		if dev.GroupID == nil {
			group := &model.PairingGroup{
				ID:        uuid.New().String(),
				Name:      dev.Name,
				CreatedBy: ownerID,
				CreatedAt: now,
			}
			if err := r.db.Create(group).Error; err != nil {
				return err
			}
			if err := r.db.Model(dev).Update("group_id", group.ID).Error; err != nil {
				return err
			}
			dev.GroupID = &group.ID
			r.log.Info("group created",
				zap.String("group_id", group.ID),
				zap.String("device_id", dev.ID))
		}

		var group model.PairingGroup
		if err := r.db.First(&group, "id = ?", *dev.GroupID).Error; err != nil {
			return err
		}

		sess := &model.PairingSession{
			ID:        uuid.New().String(),
			GroupID:   group.ID,
			CreatedBy: ownerID,
			ExpiresAt: now.Add(r.sessionTTL),
			Payload:   dev.Name,
			CreatedAt: now,
		}
		if err := r.db.Create(sess).Error; err != nil {
			return err
		}
		out = &model.Invite{
			SessionID:   sess.ID,
			GroupID:     group.ID,
			GroupName:   group.Name,
			InviterName: dev.Name,
		}
		r.log.Info("invite generated",
			zap.String("session_id", sess.ID),
			zap.String("group_id", group.ID))
		return nil
	})
	return out, err
}

// RedeemInvite consumes a pairing session: the redeeming device leaves its
// current group (if any) and joins the session's group. The session is
// deleted whether or not it was still valid; a second redemption fails.
func (r *PairingRegistry) RedeemInvite(sessionID, deviceID, ownerID string) (*model.GroupSnapshot, error) {
	var out *model.GroupSnapshot
	err := r.parts.Do(partition.GlobalKey, func() error {
		var sess model.PairingSession
		if err := r.db.First(&sess, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrSessionNotFound
			}
			return err
		}
		if time.Now().After(sess.ExpiresAt) {
			if err := r.db.Delete(&sess).Error; err != nil {
				return err
			}
			r.log.Info("expired session swept", zap.String("session_id", sess.ID))
			return errs.ErrSessionExpired
		}

		var group model.PairingGroup
		if err := r.db.First(&group, "id = ?", sess.GroupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				_ = r.db.Delete(&sess).Error
				return errs.ErrGroupNotFound
			}
			return err
		}

		dev, err := r.ownedDevice(deviceID, ownerID)
		if err != nil {
			return err
		}

		// A device already in the target group stays put. Running the leave
		// step here would empty a sole-member group and delete the very
		// group the device is about to re-join.
		if dev.GroupID == nil || *dev.GroupID != group.ID {
			if err := r.leaveCurrentGroup(dev); err != nil {
				return err
			}
			if err := r.db.Model(dev).Update("group_id", group.ID).Error; err != nil {
				return err
			}
		}
		if err := r.db.Delete(&sess).Error; err != nil {
			return err
		}

		members, err := r.groupMembers(group.ID)
		if err != nil {
			return err
		}
		out = groupSnapshot(&group, members)
		r.log.Info("device paired",
			zap.String("device_id", dev.ID),
			zap.String("group_id", group.ID))
		return nil
	})
	return out, err
}

// LeaveGroup removes the device from its group; a no-op if ungrouped.
func (r *PairingRegistry) LeaveGroup(deviceID, ownerID string) error {
	return r.parts.Do(partition.GlobalKey, func() error {
		dev, err := r.ownedDevice(deviceID, ownerID)
		if err != nil {
			return err
		}
		return r.leaveCurrentGroup(dev)
	})
}

// GetActiveGroup returns the device's group and its member records, or
// nulls if ungrouped.
func (r *PairingRegistry) GetActiveGroup(deviceID, ownerID string) (*model.ActiveGroup, error) {
	var out *model.ActiveGroup
	err := r.parts.Do(partition.GlobalKey, func() error {
		dev, err := r.ownedDevice(deviceID, ownerID)
		if err != nil {
			return err
		}
		if dev.GroupID == nil {
			out = &model.ActiveGroup{DevicesInGroup: []model.DeviceView{}}
			return nil
		}
		var group model.PairingGroup
		if err := r.db.First(&group, "id = ?", *dev.GroupID).Error; err != nil {
			return err
		}
		members, err := r.groupMembers(group.ID)
		if err != nil {
			return err
		}
		views := make([]model.DeviceView, 0, len(members))
		for i := range members {
			views = append(views, model.DeviceToView(&members[i]))
		}
		out = &model.ActiveGroup{Group: groupSnapshot(&group, members), DevicesInGroup: views}
		return nil
	})
	return out, err
}

// ownedDevice loads the device and checks ownership. A device that exists
// but belongs to someone else looks identical to one that does not exist.
func (r *PairingRegistry) ownedDevice(deviceID, ownerID string) (*model.Device, error) {
	var dev model.Device
	err := r.db.Where("id = ? AND owner_id = ?", deviceID, ownerID).First(&dev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrDeviceNotFound
		}
		return nil, err
	}
	return &dev, nil
}

// leaveCurrentGroup clears the device's group and deletes the group row,
// plus any pairing sessions referencing it, once its member count reaches
// zero. Keeps empty groups from outliving the operation that emptied them.
func (r *PairingRegistry) leaveCurrentGroup(dev *model.Device) error {
	if dev.GroupID == nil {
		return nil
	}
	oldGroupID := *dev.GroupID
	if err := r.db.Model(dev).Update("group_id", nil).Error; err != nil {
		return err
	}
	dev.GroupID = nil

	var remaining int64
	if err := r.db.Model(&model.Device{}).
		Where("group_id = ?", oldGroupID).
		Count(&remaining).Error; err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	if err := r.db.Where("group_id = ?", oldGroupID).
		Delete(&model.PairingSession{}).Error; err != nil {
		return err
	}
	if err := r.db.Delete(&model.PairingGroup{}, "id = ?", oldGroupID).Error; err != nil {
		return err
	}
	r.log.Info("empty group deleted", zap.String("group_id", oldGroupID))
	return nil
}

func (r *PairingRegistry) groupMembers(groupID string) ([]model.Device, error) {
	var members []model.Device
	if err := r.db.Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func groupSnapshot(group *model.PairingGroup, members []model.Device) *model.GroupSnapshot {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return &model.GroupSnapshot{
		GroupID:   group.ID,
		GroupName: group.Name,
		DeviceIDs: ids,
		CreatedBy: group.CreatedBy,
		CreatedAt: group.CreatedAt,
	}
}
