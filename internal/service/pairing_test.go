package service_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mixtura/petube/internal/database"
	"github.com/mixtura/petube/internal/errs"
	"github.com/mixtura/petube/internal/model"
	"github.com/mixtura/petube/internal/partition"
	"github.com/mixtura/petube/internal/service"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newRegistry(t *testing.T, db *gorm.DB) *service.PairingRegistry {
	t.Helper()
	return service.NewPairingRegistry(db, partition.NewRouter(), zap.NewNop(), 600*time.Second)
}

// requireNoEmptyGroups asserts that no group row has zero member devices.
func requireNoEmptyGroups(t *testing.T, db *gorm.DB) {
	t.Helper()
	var groups []model.PairingGroup
	require.NoError(t, db.Find(&groups).Error)
	for _, g := range groups {
		var members int64
		require.NoError(t, db.Model(&model.Device{}).
			Where("group_id = ?", g.ID).Count(&members).Error)
		require.Positive(t, members, "group %s has no members", g.ID)
	}
}

func TestRegisterDevice(t *testing.T) {
	db := newTestDB(t)
	reg := newRegistry(t, db)

	dev, err := reg.RegisterDevice("owner-1", "Kitchen Cam", model.DeviceTypeMobile, "hw-abc")
	require.NoError(t, err)
	assert.NotEmpty(t, dev.ID)
	assert.True(t, dev.IsActive)
	assert.Nil(t, dev.GroupID)

	t.Run("same identifier updates in place", func(t *testing.T) {
		again, err := reg.RegisterDevice("owner-1", "Kitchen Cam v2", model.DeviceTypeMobile, "hw-abc")
		require.NoError(t, err)
		assert.Equal(t, dev.ID, again.ID)
		assert.Equal(t, "Kitchen Cam v2", again.Name)

		var count int64
		require.NoError(t, db.Model(&model.Device{}).
			Where("owner_id = ?", "owner-1").Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})

	t.Run("same identifier different owner creates a new row", func(t *testing.T) {
		other, err := reg.RegisterDevice("owner-2", "Kitchen Cam", model.DeviceTypeMobile, "hw-abc")
		require.NoError(t, err)
		assert.NotEqual(t, dev.ID, other.ID)
	})

	t.Run("no identifier always creates", func(t *testing.T) {
		a, err := reg.RegisterDevice("owner-3", "Browser", model.DeviceTypeWeb, "")
		require.NoError(t, err)
		b, err := reg.RegisterDevice("owner-3", "Browser", model.DeviceTypeWeb, "")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("reactivation preserves group membership", func(t *testing.T) {
		_, err := reg.GenerateInvite(dev.ID, "owner-1")
		require.NoError(t, err)
		again, err := reg.RegisterDevice("owner-1", "Kitchen Cam v3", model.DeviceTypeMobile, "hw-abc")
		require.NoError(t, err)
		assert.NotNil(t, again.GroupID)
	})
}

func TestListDevices(t *testing.T) {
	db := newTestDB(t)
	reg := newRegistry(t, db)

	first, err := reg.RegisterDevice("owner-1", "Old", model.DeviceTypeMobile, "hw-1")
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.Device{}).Where("id = ?", first.ID).
		Update("last_seen", time.Now().Add(-time.Hour)).Error)
	second, err := reg.RegisterDevice("owner-1", "New", model.DeviceTypeWeb, "hw-2")
	require.NoError(t, err)
	_, err = reg.RegisterDevice("owner-2", "Other", model.DeviceTypeMobile, "hw-3")
	require.NoError(t, err)

	devices, err := reg.ListDevices("owner-1")
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, second.ID, devices[0].ID, "most recently seen first")
	assert.Equal(t, first.ID, devices[1].ID)
}

func TestGenerateInvite(t *testing.T) {
	db := newTestDB(t)
	reg := newRegistry(t, db)

	dev, err := reg.RegisterDevice("owner-1", "Kitchen Cam", model.DeviceTypeMobile, "hw-1")
	require.NoError(t, err)

	invite, err := reg.GenerateInvite(dev.ID, "owner-1")
	require.NoError(t, err)
	assert.NotEmpty(t, invite.SessionID)
	assert.NotEmpty(t, invite.GroupID)
	assert.Equal(t, "Kitchen Cam", invite.GroupName)
	assert.Equal(t, "Kitchen Cam", invite.InviterName)
	requireNoEmptyGroups(t, db)

	t.Run("second invite reuses the group", func(t *testing.T) {
		again, err := reg.GenerateInvite(dev.ID, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, invite.GroupID, again.GroupID)
		assert.NotEqual(t, invite.SessionID, again.SessionID)
	})

	t.Run("foreign device is not found", func(t *testing.T) {
		_, err := reg.GenerateInvite(dev.ID, "owner-2")
		assert.ErrorIs(t, err, errs.ErrDeviceNotFound)
	})

	t.Run("sweeps expired sessions", func(t *testing.T) {
		stale, err := reg.GenerateInvite(dev.ID, "owner-1")
		require.NoError(t, err)
		require.NoError(t, db.Model(&model.PairingSession{}).
			Where("id = ?", stale.SessionID).
			Update("expires_at", time.Now().Add(-time.Second)).Error)

		_, err = reg.GenerateInvite(dev.ID, "owner-1")
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&model.PairingSession{}).
			Where("id = ?", stale.SessionID).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestRedeemInvite(t *testing.T) {
	db := newTestDB(t)
	reg := newRegistry(t, db)

	inviter, err := reg.RegisterDevice("owner-1", "Kitchen Cam", model.DeviceTypeMobile, "hw-1")
	require.NoError(t, err)
	joiner, err := reg.RegisterDevice("owner-1", "Browser", model.DeviceTypeWeb, "hw-2")
	require.NoError(t, err)
	invite, err := reg.GenerateInvite(inviter.ID, "owner-1")
	require.NoError(t, err)

	group, err := reg.RedeemInvite(invite.SessionID, joiner.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, invite.GroupID, group.GroupID)
	assert.ElementsMatch(t, []string{inviter.ID, joiner.ID}, group.DeviceIDs)
	requireNoEmptyGroups(t, db)

	t.Run("second redemption fails", func(t *testing.T) {
		_, err := reg.RedeemInvite(invite.SessionID, joiner.ID, "owner-1")
		assert.ErrorIs(t, err, errs.ErrSessionNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := reg.RedeemInvite("00000000-0000-4000-8000-000000000000", joiner.ID, "owner-1")
		assert.ErrorIs(t, err, errs.ErrSessionNotFound)
	})

	t.Run("redeeming moves the device out of its old group", func(t *testing.T) {
		// Put a third device in its own group, then pair it into the
		// existing one; the emptied group must disappear.
		third, err := reg.RegisterDevice("owner-1", "Bedroom Cam", model.DeviceTypeMobile, "hw-3")
		require.NoError(t, err)
		own, err := reg.GenerateInvite(third.ID, "owner-1")
		require.NoError(t, err)
		require.NotEqual(t, invite.GroupID, own.GroupID)

		fresh, err := reg.GenerateInvite(inviter.ID, "owner-1")
		require.NoError(t, err)
		snap, err := reg.RedeemInvite(fresh.SessionID, third.ID, "owner-1")
		require.NoError(t, err)
		assert.Contains(t, snap.DeviceIDs, third.ID)
		requireNoEmptyGroups(t, db)

		var gone int64
		require.NoError(t, db.Model(&model.PairingGroup{}).
			Where("id = ?", own.GroupID).Count(&gone).Error)
		assert.Zero(t, gone, "emptied group must be deleted")
	})
}

func TestRedeemInviteOwnGroup(t *testing.T) {
	db := newTestDB(t)
	reg := newRegistry(t, db)

	// A sole-member device redeeming its own invite must stay in its group;
	// the group must not be emptied and re-pointed at.
	dev, err := reg.RegisterDevice("owner-1", "Kitchen Cam", model.DeviceTypeMobile, "hw-1")
	require.NoError(t, err)
	invite, err := reg.GenerateInvite(dev.ID, "owner-1")
	require.NoError(t, err)

	snap, err := reg.RedeemInvite(invite.SessionID, dev.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, invite.GroupID, snap.GroupID)
	assert.Equal(t, []string{dev.ID}, snap.DeviceIDs)
	requireNoEmptyGroups(t, db)

	var groups int64
	require.NoError(t, db.Model(&model.PairingGroup{}).
		Where("id = ?", invite.GroupID).Count(&groups).Error)
	assert.EqualValues(t, 1, groups, "the group must survive self-redemption")

	got, err := reg.GetActiveGroup(dev.ID, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, got.Group)
	assert.Equal(t, invite.GroupID, got.Group.GroupID)

	t.Run("session is still single-use", func(t *testing.T) {
		_, err := reg.RedeemInvite(invite.SessionID, dev.ID, "owner-1")
		assert.ErrorIs(t, err, errs.ErrSessionNotFound)
	})

	t.Run("grouped peer redeeming into the same group stays put", func(t *testing.T) {
		peer, err := reg.RegisterDevice("owner-1", "Browser", model.DeviceTypeWeb, "hw-2")
		require.NoError(t, err)
		first, err := reg.GenerateInvite(dev.ID, "owner-1")
		require.NoError(t, err)
		_, err = reg.RedeemInvite(first.SessionID, peer.ID, "owner-1")
		require.NoError(t, err)

		second, err := reg.GenerateInvite(dev.ID, "owner-1")
		require.NoError(t, err)
		snap, err := reg.RedeemInvite(second.SessionID, peer.ID, "owner-1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{dev.ID, peer.ID}, snap.DeviceIDs)
		requireNoEmptyGroups(t, db)
	})
}

func TestRedeemInviteExpired(t *testing.T) {
	db := newTestDB(t)
	reg := newRegistry(t, db)

	inviter, err := reg.RegisterDevice("owner-1", "Kitchen Cam", model.DeviceTypeMobile, "hw-1")
	require.NoError(t, err)
	joiner, err := reg.RegisterDevice("owner-1", "Browser", model.DeviceTypeWeb, "hw-2")
	require.NoError(t, err)
	invite, err := reg.GenerateInvite(inviter.ID, "owner-1")
	require.NoError(t, err)

	// 600s TTL, redeemed 601s later.
	require.NoError(t, db.Model(&model.PairingSession{}).
		Where("id = ?", invite.SessionID).
		Update("expires_at", time.Now().Add(-time.Second)).Error)

	_, err = reg.RedeemInvite(invite.SessionID, joiner.ID, "owner-1")
	assert.ErrorIs(t, err, errs.ErrSessionExpired)

	var count int64
	require.NoError(t, db.Model(&model.PairingSession{}).
		Where("id = ?", invite.SessionID).Count(&count).Error)
	assert.Zero(t, count, "expired session must be deleted on access")

	// The joiner stayed ungrouped.
	var dev model.Device
	require.NoError(t, db.First(&dev, "id = ?", joiner.ID).Error)
	assert.Nil(t, dev.GroupID)
}

func TestLeaveGroup(t *testing.T) {
	db := newTestDB(t)
	reg := newRegistry(t, db)

	inviter, err := reg.RegisterDevice("owner-1", "Kitchen Cam", model.DeviceTypeMobile, "hw-1")
	require.NoError(t, err)
	joiner, err := reg.RegisterDevice("owner-1", "Browser", model.DeviceTypeWeb, "hw-2")
	require.NoError(t, err)
	invite, err := reg.GenerateInvite(inviter.ID, "owner-1")
	require.NoError(t, err)
	_, err = reg.RedeemInvite(invite.SessionID, joiner.ID, "owner-1")
	require.NoError(t, err)

	require.NoError(t, reg.LeaveGroup(joiner.ID, "owner-1"))
	requireNoEmptyGroups(t, db)

	// Group survives with one member left.
	var groups int64
	require.NoError(t, db.Model(&model.PairingGroup{}).Count(&groups).Error)
	assert.EqualValues(t, 1, groups)

	t.Run("last member leaving deletes group and its sessions", func(t *testing.T) {
		_, err := reg.GenerateInvite(inviter.ID, "owner-1")
		require.NoError(t, err)
		require.NoError(t, reg.LeaveGroup(inviter.ID, "owner-1"))

		var groups, sessions int64
		require.NoError(t, db.Model(&model.PairingGroup{}).Count(&groups).Error)
		require.NoError(t, db.Model(&model.PairingSession{}).Count(&sessions).Error)
		assert.Zero(t, groups)
		assert.Zero(t, sessions, "sessions of a deleted group must cascade")
	})

	t.Run("ungrouped device is a no-op", func(t *testing.T) {
		assert.NoError(t, reg.LeaveGroup(joiner.ID, "owner-1"))
	})
}

func TestGetActiveGroup(t *testing.T) {
	db := newTestDB(t)
	reg := newRegistry(t, db)

	dev, err := reg.RegisterDevice("owner-1", "Kitchen Cam", model.DeviceTypeMobile, "hw-1")
	require.NoError(t, err)

	t.Run("ungrouped", func(t *testing.T) {
		got, err := reg.GetActiveGroup(dev.ID, "owner-1")
		require.NoError(t, err)
		assert.Nil(t, got.Group)
		assert.Empty(t, got.DevicesInGroup)
	})

	t.Run("grouped", func(t *testing.T) {
		invite, err := reg.GenerateInvite(dev.ID, "owner-1")
		require.NoError(t, err)

		got, err := reg.GetActiveGroup(dev.ID, "owner-1")
		require.NoError(t, err)
		require.NotNil(t, got.Group)
		assert.Equal(t, invite.GroupID, got.Group.GroupID)
		require.Len(t, got.DevicesInGroup, 1)
		assert.Equal(t, dev.ID, got.DevicesInGroup[0].DeviceID)
	})

	t.Run("foreign device", func(t *testing.T) {
		_, err := reg.GetActiveGroup(dev.ID, "owner-2")
		assert.ErrorIs(t, err, errs.ErrDeviceNotFound)
	})
}
