package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/tylerwon/go-chat-rooms/internal/hub"
	"github.com/tylerwon/go-chat-rooms/internal/metrics"
	"github.com/tylerwon/go-chat-rooms/internal/proto"
	"github.com/tylerwon/go-chat-rooms/internal/room"
	"github.com/tylerwon/go-chat-rooms/internal/user"
)

// Reply texts sent back to clients. The client renders them verbatim.
const (
	replyNotInRoom = "you are not in a chat room: type '/join [room number]' to join a room"
)

func replyNoSuchRoom(id uint8) string { return fmt.Sprintf("room %d does not exist", id) }
func replyAlreadyIn(id int) string    { return fmt.Sprintf("you are already in room %d", id) }
func replyRoomFull(id int) string     { return fmt.Sprintf("room %d is full", id) }
func replyJoined(id int) string       { return fmt.Sprintf("you have joined room %d", id) }
func replyNameSet(name string) string { return fmt.Sprintf("set name to %s", name) }

type eventKind int

const (
	evConnect eventKind = iota
	evFrame
	evHangup
)

// session is the dispatcher's handle on one connection.
type session struct {
	uid    uint64
	conn   net.Conn
	client *hub.Client
	logger *slog.Logger
}

type event struct {
	kind eventKind
	sess *session
	msg  proto.Message
	err  error
}

// dispatch consumes connection events one at a time. It is the single
// goroutine allowed to touch the room registry and the user table, which is
// what keeps the membership invariants without locks.
func (s *Server) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			switch ev.kind {
			case evConnect:
				s.handleConnect(ev.sess)
			case evFrame:
				s.handleFrame(ev.sess, ev.msg)
			case evHangup:
				s.drop(ev.sess, ev.err)
			}
		}
	}
}

func (s *Server) handleConnect(sess *session) {
	if _, err := s.users.Add(sess.uid, proto.DefaultName); err != nil {
		// No user record exists, so tear the connection down directly.
		sess.logger.Error("user_register_error", "error", err)
		metrics.IncError(metrics.ErrDispatch)
		s.clientsMu.Lock()
		delete(s.clients, sess.client)
		s.clientsMu.Unlock()
		s.Hub.Remove(sess.client)
		_ = sess.conn.Close()
	}
}

func (s *Server) handleFrame(sess *session, m proto.Message) {
	u, err := s.users.Find(sess.uid)
	if err != nil {
		// Connection already torn down; late frame from the reader.
		return
	}
	switch msg := m.(type) {
	case *proto.Chat:
		s.handleChat(sess, u, msg)
	case *proto.Name:
		s.handleName(sess, u, msg)
	case *proto.Join:
		s.handleJoin(sess, u, msg)
	default:
		// REPLY (or anything else) is server-to-client only.
		metrics.IncMalformed()
		s.drop(sess, fmt.Errorf("%w: client sent %T", ErrProtocol, m))
	}
}

// handleChat stamps the frame with the sender's registered name and the
// current wall clock, then fans it out to every member of the sender's room,
// the sender included.
func (s *Server) handleChat(sess *session, u *user.User, msg *proto.Chat) {
	if u.Room == room.Invalid {
		s.reply(sess, replyNotInRoom)
		return
	}
	rm, err := s.Rooms.Get(u.Room)
	if err != nil {
		sess.logger.Error("chat_room_lookup_error", "room", u.Room, "error", err)
		metrics.IncError(metrics.ErrDispatch)
		return
	}
	msg.Timestamp = uint32(time.Now().Unix())
	msg.Name = u.Name
	b, err := s.Codec.Encode(msg)
	if err != nil {
		sess.logger.Error("chat_encode_error", "error", err)
		metrics.IncError(metrics.ErrDispatch)
		return
	}
	sent := s.Hub.Broadcast(rm.Members(), b)
	metrics.IncBroadcast()
	sess.logger.Debug("chat_broadcast", "room", rm.ID(), "members", rm.Len(), "queued", sent)
}

func (s *Server) handleName(sess *session, u *user.User, msg *proto.Name) {
	u.Name = msg.Name
	metrics.IncNameChange()
	sess.logger.Info("name_set", "name", u.Name)
	s.reply(sess, replyNameSet(u.Name))
}

// handleJoin moves the user into the requested room. Leaving the old room is
// not rolled back when the new room is full; the user ends up in no room,
// matching the join/leave ordering of the state machine.
func (s *Server) handleJoin(sess *session, u *user.User, msg *proto.Join) {
	rm, err := s.Rooms.Get(int(msg.RoomID))
	if err != nil {
		s.reply(sess, replyNoSuchRoom(msg.RoomID))
		return
	}
	if u.Room == rm.ID() {
		s.reply(sess, replyAlreadyIn(rm.ID()))
		return
	}
	if u.Room != room.Invalid {
		if prev, err := s.Rooms.Get(u.Room); err == nil {
			if err := s.Rooms.RemoveUser(prev, u); err != nil {
				sess.logger.Error("room_leave_error", "room", prev.ID(), "error", err)
			}
			s.setOccupancy(prev)
		}
	}
	if err := s.Rooms.AddUser(rm, u); err != nil {
		s.reply(sess, replyRoomFull(rm.ID()))
		return
	}
	metrics.IncRoomJoin()
	s.setOccupancy(rm)
	sess.logger.Info("room_joined", "room", rm.ID(), "members", rm.Len())
	s.reply(sess, replyJoined(rm.ID()))
}

// drop tears one connection down: room membership, user record, hub client,
// socket. Safe to call more than once for the same session; only the first
// call finds the user.
func (s *Server) drop(sess *session, reason error) {
	u, err := s.users.Find(sess.uid)
	if err != nil {
		return // already dropped
	}
	if u.Room != room.Invalid {
		if rm, err := s.Rooms.Get(u.Room); err == nil {
			if err := s.Rooms.RemoveUser(rm, u); err != nil {
				sess.logger.Error("room_leave_error", "room", rm.ID(), "error", err)
			}
			s.setOccupancy(rm)
		}
	}
	_ = s.users.Delete(sess.uid)
	s.clientsMu.Lock()
	delete(s.clients, sess.client)
	s.clientsMu.Unlock()
	s.Hub.Remove(sess.client)
	_ = sess.conn.Close()
	s.totalDisconnected.Add(1)
	if reason != nil {
		s.totalProtoDrops.Add(1)
		sess.logger.Warn("client_dropped", "error", reason)
		return
	}
	sess.logger.Info("client_disconnected")
}

func (s *Server) reply(sess *session, text string) {
	b, err := s.Codec.Encode(&proto.Reply{Reply: text})
	if err != nil {
		sess.logger.Error("reply_encode_error", "error", err)
		metrics.IncError(metrics.ErrDispatch)
		return
	}
	s.Hub.Send(sess.client, b)
}

func (s *Server) setOccupancy(rm *room.Room) {
	metrics.SetRoomOccupancy(strconv.Itoa(rm.ID()), rm.Len())
}
