// Package router implements the session core: login/logout/abnormal-close, one-to-one and group chat delivery, and
// the friend/group management wrappers. It is the only package that sees every other domain package at once.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaychat-im/relaychat-server/internal/auth"
	"github.com/relaychat-im/relaychat-server/internal/codec"
	"github.com/relaychat-im/relaychat-server/internal/dispatch"
	"github.com/relaychat-im/relaychat-server/internal/friend"
	"github.com/relaychat-im/relaychat-server/internal/group"
	"github.com/relaychat-im/relaychat-server/internal/offline"
	"github.com/relaychat-im/relaychat-server/internal/pubsub"
	"github.com/relaychat-im/relaychat-server/internal/registry"
	"github.com/relaychat-im/relaychat-server/internal/sanitize"
	"github.com/relaychat-im/relaychat-server/internal/transport"
	"github.com/relaychat-im/relaychat-server/internal/user"
	"github.com/relaychat-im/relaychat-server/internal/wire"
)

// Router wires the connection registry, the cross-instance bus, and the repositories together into the message
// handlers named by the wire protocol. It is constructed explicitly by the caller; there is no package-level
// singleton.
type Router struct {
	Users   user.Repository
	Friends friend.Repository
	Groups  group.Repository
	Offline offline.Repository
	Reg     *registry.Registry
	Bus     *pubsub.Bus
	Log     zerolog.Logger
}

// New constructs a Router from its dependencies.
func New(users user.Repository, friends friend.Repository, groups group.Repository, off offline.Repository, reg *registry.Registry, bus *pubsub.Bus, logger zerolog.Logger) *Router {
	r := &Router{Users: users, Friends: friends, Groups: groups, Offline: off, Reg: reg, Bus: bus, Log: logger}
	bus.SetInboundHandler(r.handleInbound)
	return r
}

// Handlers returns the msgid -> dispatch.Handler table for this router, suitable for dispatch.NewTable.
func (r *Router) Handlers() map[int]dispatch.Handler {
	return map[int]dispatch.Handler{
		wire.Login:       r.Login,
		wire.Register:    r.Register,
		wire.OneChat:     r.OneChat,
		wire.GroupChat:   r.GroupChat,
		wire.AddFriend:   r.AddFriend,
		wire.CreateGroup: r.CreateGroup,
		wire.AddGroup:    r.AddGroup,
		wire.LoginOut:    r.LoginOut,
	}
}

// userView is the {id,name,state} shape embedded, JSON-encoded as a string, in login replies.
type userView struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	State user.State `json:"state"`
}

// groupMemberView is the {id,name,state,role} shape embedded, JSON-encoded as a string, inside a group's users.
type groupMemberView struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	State user.State `json:"state"`
	Role  group.Role `json:"role"`
}

// groupView is the {id,groupname,groupdesc,users:[string]} shape embedded, JSON-encoded as a string, in login
// replies.
type groupView struct {
	ID    int64    `json:"id"`
	Name  string   `json:"groupname"`
	Desc  string   `json:"groupdesc"`
	Users []string `json:"users"`
}

func encodeOne(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Every value passed to encodeOne is one of this file's own plain structs; a marshal failure here would be
		// a programmer error, not a runtime condition.
		panic("router: marshal of internal view struct failed: " + err.Error())
	}
	return string(b)
}

// Login implements the login handler described in 4.F: credential check, duplicate-login rejection, registry bind,
// pub/sub subscribe, offline message replay, and friend/group snapshot.
func (r *Router) Login(ctx context.Context, conn transport.Conn, frame codec.Frame) {
	var req wire.LoginRequest
	if err := frame.Unmarshal(&req); err != nil {
		r.Log.Warn().Err(err).Msg("router: malformed login frame")
		return
	}

	u, err := r.Users.GetByID(ctx, req.ID)
	if err != nil || !auth.ComparePassword(req.Password, u.Password) {
		r.reply(conn, wire.LoginResponse{MsgID: wire.LoginAck, Errno: wire.ErrnoInvalidCredential, ErrMsg: "id or password is invalid!"})
		return
	}

	if u.State == user.StateOnline {
		r.reply(conn, wire.LoginResponse{MsgID: wire.LoginAck, Errno: wire.ErrnoAlreadyOnline, ErrMsg: "this account is using, input another!"})
		return
	}

	if err := r.Reg.Bind(u.ID, conn); err != nil {
		r.reply(conn, wire.LoginResponse{MsgID: wire.LoginAck, Errno: wire.ErrnoAlreadyOnline, ErrMsg: "this account is using, input another!"})
		return
	}

	if err := r.Bus.Subscribe(ctx, u.ID); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", u.ID).Msg("router: subscribe failed")
	}
	if err := r.Users.SetState(ctx, u.ID, user.StateOnline); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", u.ID).Msg("router: set state online failed")
	}

	var offlineMsgs []string
	if msgs, err := r.Offline.Query(ctx, u.ID); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", u.ID).Msg("router: query offline messages failed")
	} else {
		offlineMsgs = msgs
		if err := r.Offline.Remove(ctx, u.ID); err != nil {
			r.Log.Warn().Err(err).Int64("user_id", u.ID).Msg("router: remove offline messages failed")
		}
	}

	var friendViews []string
	if friends, err := r.Friends.List(ctx, u.ID); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", u.ID).Msg("router: list friends failed")
	} else {
		for _, f := range friends {
			friendViews = append(friendViews, encodeOne(userView{ID: f.ID, Name: f.Name, State: f.State}))
		}
	}

	var groupViews []string
	if groups, err := r.Groups.ListForUser(ctx, u.ID); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", u.ID).Msg("router: list groups failed")
	} else {
		for _, g := range groups {
			users := make([]string, 0, len(g.Users))
			for _, m := range g.Users {
				users = append(users, encodeOne(groupMemberView{ID: m.ID, Name: m.Name, State: m.State, Role: m.Role}))
			}
			groupViews = append(groupViews, encodeOne(groupView{ID: g.ID, Name: g.Name, Desc: g.Desc, Users: users}))
		}
	}

	r.reply(conn, wire.LoginResponse{
		MsgID:       wire.LoginAck,
		Errno:       wire.ErrnoOK,
		ID:          u.ID,
		Name:        u.Name,
		OfflineMsgs: offlineMsgs,
		Friends:     friendViews,
		Groups:      groupViews,
	})
}

// Register implements the register handler: a thin insert-and-reply wrapper.
func (r *Router) Register(ctx context.Context, conn transport.Conn, frame codec.Frame) {
	var req wire.RegisterRequest
	if err := frame.Unmarshal(&req); err != nil {
		r.Log.Warn().Err(err).Msg("router: malformed register frame")
		return
	}

	if user.ValidateName(req.Name, 50) != nil || user.ValidatePassword(req.Password, 100) != nil {
		r.reply(conn, wire.RegisterResponse{MsgID: wire.RegisterAck, Errno: wire.ErrnoNameTaken})
		return
	}

	id, err := r.Users.Create(ctx, req.Name, req.Password)
	if err != nil {
		r.reply(conn, wire.RegisterResponse{MsgID: wire.RegisterAck, Errno: wire.ErrnoNameTaken})
		return
	}
	r.reply(conn, wire.RegisterResponse{MsgID: wire.RegisterAck, Errno: wire.ErrnoOK, ID: id})
}

// LoginOut implements the explicit logout handler.
func (r *Router) LoginOut(ctx context.Context, conn transport.Conn, frame codec.Frame) {
	var req wire.LoginOutRequest
	if err := frame.Unmarshal(&req); err != nil {
		r.Log.Warn().Err(err).Msg("router: malformed loginout frame")
		return
	}
	r.logoutUser(ctx, req.ID)
}

// AbnormalClose is invoked by the server shell when a connection's read loop ends, regardless of whether the client
// sent LOGINOUT first.
func (r *Router) AbnormalClose(ctx context.Context, conn transport.Conn) {
	userID, ok := r.Reg.UnbindByConn(conn)
	if !ok {
		return
	}
	r.finishLogout(ctx, userID)
}

func (r *Router) logoutUser(ctx context.Context, userID int64) {
	if !r.Reg.UnbindUser(userID) {
		return
	}
	r.finishLogout(ctx, userID)
}

func (r *Router) finishLogout(ctx context.Context, userID int64) {
	if err := r.Bus.Unsubscribe(ctx, userID); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", userID).Msg("router: unsubscribe failed")
	}
	if err := r.Users.SetState(ctx, userID, user.StateOffline); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", userID).Msg("router: set state offline failed")
	}
}

// OneChat implements the one-to-one chat three-way delivery decision.
func (r *Router) OneChat(ctx context.Context, conn transport.Conn, frame codec.Frame) {
	var msg wire.ChatMessage
	if err := frame.Unmarshal(&msg); err != nil {
		r.Log.Warn().Err(err).Msg("router: malformed one-chat frame")
		return
	}
	msg.Msg = sanitize.Text(msg.Msg)
	msg.MsgID = wire.OneChat
	if msg.Time == "" {
		msg.Time = now()
	}

	r.deliver(ctx, msg.ToID, msg)
}

// GroupChat resolves group membership (excluding the sender) and applies the three-way decision to each member.
func (r *Router) GroupChat(ctx context.Context, conn transport.Conn, frame codec.Frame) {
	var msg wire.ChatMessage
	if err := frame.Unmarshal(&msg); err != nil {
		r.Log.Warn().Err(err).Msg("router: malformed group-chat frame")
		return
	}
	msg.Msg = sanitize.Text(msg.Msg)
	msg.MsgID = wire.GroupChat
	if msg.Time == "" {
		msg.Time = now()
	}

	members, err := r.Groups.Members(ctx, msg.Group, msg.ID)
	if err != nil {
		r.Log.Warn().Err(err).Int64("group_id", msg.Group).Msg("router: list group members failed")
		return
	}
	for _, m := range members {
		r.deliver(ctx, m.ID, msg)
	}
}

// deliver applies the three-way decision from 4.F: local registry hit, remote-online publish, or offline spool.
func (r *Router) deliver(ctx context.Context, toID int64, msg wire.ChatMessage) {
	frame, err := codec.EncodeReply(msg)
	if err != nil {
		r.Log.Error().Err(err).Msg("router: encode chat message failed")
		return
	}

	delivered, err := r.Reg.Send(toID, frame)
	if delivered {
		if err != nil {
			r.Log.Warn().Err(err).Int64("to", toID).Msg("router: local delivery failed")
		}
		return
	}

	target, err := r.Users.GetByID(ctx, toID)
	if err == nil && target.State == user.StateOnline {
		if err := r.Bus.Publish(ctx, toID, frame); err != nil {
			r.Log.Warn().Err(err).Int64("to", toID).Msg("router: publish failed")
		}
		return
	}
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		r.Log.Warn().Err(err).Int64("to", toID).Msg("router: lookup recipient failed")
	}

	if err := r.Offline.Insert(ctx, toID, string(frame)); err != nil {
		r.Log.Warn().Err(err).Int64("to", toID).Msg("router: offline insert failed")
	}
}

// AddFriend is a thin wrapper over friend.Repository.Add.
func (r *Router) AddFriend(ctx context.Context, _ transport.Conn, frame codec.Frame) {
	var req wire.AddFriendRequest
	if err := frame.Unmarshal(&req); err != nil {
		r.Log.Warn().Err(err).Msg("router: malformed add-friend frame")
		return
	}
	if err := r.Friends.Add(ctx, req.ID, req.FriendID); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", req.ID).Int64("friend_id", req.FriendID).Msg("router: add friend failed")
	}
}

// CreateGroup is a thin wrapper over group.Repository.Create, assigning the requester the creator role.
func (r *Router) CreateGroup(ctx context.Context, _ transport.Conn, frame codec.Frame) {
	var req wire.CreateGroupRequest
	if err := frame.Unmarshal(&req); err != nil {
		r.Log.Warn().Err(err).Msg("router: malformed create-group frame")
		return
	}
	desc := sanitize.Text(req.GroupDesc)
	if _, err := r.Groups.Create(ctx, req.ID, req.GroupName, desc); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", req.ID).Msg("router: create group failed")
	}
}

// AddGroup is a thin wrapper over group.Repository.AddMember, assigning the requester the normal role.
func (r *Router) AddGroup(ctx context.Context, _ transport.Conn, frame codec.Frame) {
	var req wire.AddGroupRequest
	if err := frame.Unmarshal(&req); err != nil {
		r.Log.Warn().Err(err).Msg("router: malformed add-group frame")
		return
	}
	if err := r.Groups.AddMember(ctx, req.GroupID, req.ID); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", req.ID).Int64("group_id", req.GroupID).Msg("router: add group member failed")
	}
}

// handleInbound is installed on the pub/sub bus. Under the registry, a locally bound recipient gets the payload
// forwarded byte-for-byte; otherwise it is spooled offline rather than dropped.
func (r *Router) handleInbound(ctx context.Context, userID int64, payload []byte) {
	delivered, err := r.Reg.Send(userID, payload)
	if delivered {
		if err != nil {
			r.Log.Warn().Err(err).Int64("user_id", userID).Msg("router: inbound forward failed")
		}
		return
	}
	if err := r.Offline.Insert(ctx, userID, string(payload)); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", userID).Msg("router: inbound offline insert failed")
	}
}

func (r *Router) reply(conn transport.Conn, v any) {
	frame, err := codec.EncodeReply(v)
	if err != nil {
		r.Log.Error().Err(err).Msg("router: encode reply failed")
		return
	}
	if err := conn.Send(frame); err != nil {
		r.Log.Warn().Err(err).Str("conn_id", conn.ID()).Msg("router: send reply failed")
	}
}

// now stamps a chat message's Time field when the client did not supply one.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
