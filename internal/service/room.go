package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mixtura/petube/internal/errs"
	"github.com/mixtura/petube/internal/model"
	"github.com/mixtura/petube/internal/partition"
)

// ClosePublisherConflict is the close code sent to a socket that requested
// the publisher role while another socket holds it.
const ClosePublisherConflict = 4000

// roomConn is the live transport handle for one attached socket. Role state
// is NOT kept here; it lives in the room_attachments table.
type roomConn struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *roomConn) writeJSON(v interface{}) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(v)
}

type roomInstance struct {
	id    string
	conns map[string]*roomConn
}

// RoomCoordinator turns the set of sockets attached to a room into a
// start/pause control protocol for the publisher. At most one socket per
// room holds the publisher role. Every decision scans the durable
// attachment rows for the room rather than trusting a volatile map, so a
// recreated instance reaches the same conclusions as the evicted one.
type RoomCoordinator struct {
	db    *gorm.DB
	parts *partition.Router
	log   *zap.Logger

	mu    sync.Mutex
	rooms map[string]*roomInstance
}

// NewRoomCoordinator creates a room coordinator.
func NewRoomCoordinator(db *gorm.DB, parts *partition.Router, log *zap.Logger) *RoomCoordinator {
	return &RoomCoordinator{
		db:    db,
		parts: parts,
		log:   log,
		rooms: make(map[string]*roomInstance),
	}
}

// Attach registers an accepted socket with a room and persists its
// attachment with an unassigned role. Returns the connection id.
func (rc *RoomCoordinator) Attach(roomID string, conn *websocket.Conn) (string, error) {
	connID := uuid.New().String()
	err := rc.parts.Do(partition.RoomKey(roomID), func() error {
		room := rc.instance(roomID)
		att := &model.RoomAttachment{
			ConnID:    connID,
			RoomID:    roomID,
			Role:      model.RoleUnassigned,
			CreatedAt: time.Now(),
		}
		if err := rc.db.Create(att).Error; err != nil {
			return err
		}
		room.conns[connID] = &roomConn{id: connID, conn: conn}
		rc.log.Info("socket attached",
			zap.String("room_id", roomID),
			zap.String("conn_id", connID))
		return nil
	})
	if err != nil {
		return "", err
	}
	return connID, nil
}

// HandleFrame processes one client frame. Malformed frames get an error
// reply on the same socket and change no state. A publisher request while
// another socket holds the role gets an error frame and a forced close with
// code 4000.
func (rc *RoomCoordinator) HandleFrame(roomID, connID string, data []byte) error {
	return rc.parts.Do(partition.RoomKey(roomID), func() error {
		room := rc.instance(roomID)
		sender, ok := room.conns[connID]
		if !ok {
			return nil // already detached
		}

		frame, err := model.DecodeRoleFrame(data)
		if err != nil {
			return sender.writeJSON(model.NewErrorFrame(err.Error()))
		}

		if frame.Role == model.RolePublisher {
			var others int64
			if err := rc.db.Model(&model.RoomAttachment{}).
				Where("room_id = ? AND role = ? AND conn_id <> ?", roomID, model.RolePublisher, connID).
				Count(&others).Error; err != nil {
				return err
			}
			if others > 0 {
				_ = sender.writeJSON(model.NewErrorFrame(errs.ErrPublisherConflict.Error()))
				rc.closeConn(sender, ClosePublisherConflict, "publisher role conflict")
				rc.log.Warn("publisher conflict",
					zap.String("room_id", roomID),
					zap.String("conn_id", connID))
				return nil
			}
		}

		if err := rc.db.Model(&model.RoomAttachment{}).
			Where("conn_id = ?", connID).
			Update("role", frame.Role).Error; err != nil {
			return err
		}
		rc.log.Info("role assigned",
			zap.String("room_id", roomID),
			zap.String("conn_id", connID),
			zap.String("role", frame.Role))
		return rc.broadcast(room)
	})
}

// Detach removes a socket's attachment and recomputes the control state.
// Socket close is the transport's business; recomputing is ours.
func (rc *RoomCoordinator) Detach(roomID, connID string) error {
	return rc.parts.Do(partition.RoomKey(roomID), func() error {
		room := rc.instance(roomID)
		delete(room.conns, connID)
		if err := rc.db.Where("conn_id = ?", connID).
			Delete(&model.RoomAttachment{}).Error; err != nil {
			return err
		}
		rc.log.Info("socket detached",
			zap.String("room_id", roomID),
			zap.String("conn_id", connID))
		if len(room.conns) == 0 {
			rc.mu.Lock()
			delete(rc.rooms, roomID)
			rc.mu.Unlock()
			return nil
		}
		return rc.broadcast(room)
	})
}

// PublisherCount reports attached sockets holding the publisher role.
func (rc *RoomCoordinator) PublisherCount(roomID string) (int64, error) {
	var n int64
	err := rc.db.Model(&model.RoomAttachment{}).
		Where("room_id = ? AND role = ?", roomID, model.RolePublisher).
		Count(&n).Error
	return n, err
}

// instance returns the live registry for a room, cold-starting it if absent.
// A fresh instance sweeps attachment rows left by a previous process: no
// live connection can exist for a room this process has never seen.
func (rc *RoomCoordinator) instance(roomID string) *roomInstance {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	room, ok := rc.rooms[roomID]
	if !ok {
		if err := rc.db.Where("room_id = ?", roomID).
			Delete(&model.RoomAttachment{}).Error; err != nil {
			rc.log.Error("stale attachment sweep failed",
				zap.String("room_id", roomID), zap.Error(err))
		}
		room = &roomInstance{id: roomID, conns: make(map[string]*roomConn)}
		rc.rooms[roomID] = room
	}
	return room
}

// broadcast recomputes control state from the attachment rows and notifies
// the publisher. Pure function of the attachment set; safe to call after
// every assignment and disconnect.
func (rc *RoomCoordinator) broadcast(room *roomInstance) error {
	var atts []model.RoomAttachment
	if err := rc.db.Where("room_id = ?", room.id).Find(&atts).Error; err != nil {
		return err
	}

	var publisherID string
	subscribers := 0
	for _, a := range atts {
		switch a.Role {
		case model.RolePublisher:
			publisherID = a.ConnID
		case model.RoleSubscriber:
			subscribers++
		}
	}
	if publisherID == "" {
		return nil
	}
	pub, ok := room.conns[publisherID]
	if !ok {
		return nil
	}

	action := model.ControlPause
	if subscribers > 0 {
		action = model.ControlStart
	}
	rc.log.Debug("control broadcast",
		zap.String("room_id", room.id),
		zap.String("action", action),
		zap.Int("subscribers", subscribers))
	return pub.writeJSON(model.NewControlFrame(action))
}

func (rc *RoomCoordinator) closeConn(c *roomConn, code int, reason string) {
	c.wmu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	c.wmu.Unlock()
	_ = c.conn.Close()
}
