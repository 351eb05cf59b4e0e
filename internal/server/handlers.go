package server

import (
	"errors"

	"linechat/internal/server/metrics"
	"linechat/internal/server/store"
	"linechat/pkg/protocol"
)

func (c *Conn) handle(u protocol.Unit) {
	if !c.limiter.Allow() {
		c.Deliver(protocol.Err{Code: protocol.ErrRate})
		return
	}

	switch u := u.(type) {
	case protocol.Ping:
		c.Deliver(protocol.Pong{})
	case protocol.Invalid:
		c.logger.Debug().Msg("Dropped invalid unit")
	case protocol.Login:
		c.login(u)
	case protocol.Register:
		c.register(u)
	case protocol.TokenLogin:
		c.loginToken(u)
	case protocol.Logout, protocol.ListRooms, protocol.Enter, protocol.Leave, protocol.Send, protocol.Sync:
		if c.role() == roleGuest {
			c.Deliver(protocol.Err{Code: protocol.ErrAuth})
			return
		}
		c.handleAuthed(u)
	default:
		c.logger.Debug().Str("kind", u.Kind().String()).Msg("Ignored unit")
	}
}

func (c *Conn) handleAuthed(u protocol.Unit) {
	switch u := u.(type) {
	case protocol.Logout:
		c.leaveRoom()
		c.logger.Info().Str("user", c.user).Msg("Logged out")
		c.user = ""
		c.Deliver(protocol.Ok{Code: protocol.OkLogout})
	case protocol.ListRooms:
		c.Deliver(protocol.Ok{Code: protocol.OkRooms, Data: c.srv.rooms.Listing()})
	case protocol.Enter:
		c.enter(u.Room)
	case protocol.Leave, protocol.Send, protocol.Sync:
		if c.role() != roleMember {
			c.Deliver(protocol.Err{Code: protocol.ErrNotInRoom})
			return
		}
		c.handleMember(u)
	}
}

func (c *Conn) handleMember(u protocol.Unit) {
	switch u := u.(type) {
	case protocol.Leave:
		c.leaveRoom()
		c.Deliver(protocol.Ok{Code: protocol.OkLeave})
	case protocol.Send:
		c.room.Post(c.user, u.Text)
		c.srv.stats.RecordMessage()
		metrics.MessagesTotal.Inc()
	case protocol.Sync:
		c.room.Resync(c, u.ID)
	}
}

func (c *Conn) enter(name string) {
	r, err := c.srv.rooms.Open(name)
	if err != nil {
		c.logger.Debug().Err(err).Str("room", name).Msg("Enter refused")
		c.Deliver(protocol.Err{Code: protocol.ErrRoom})
		return
	}
	c.leaveRoom()
	c.room = r
	r.Join(c)
}

func (c *Conn) login(u protocol.Login) {
	token, err := c.srv.auth.LoginPass(u.User, u.Pass)
	c.recordAuth("password", err)
	if err != nil {
		c.authFailed(err, protocol.ErrLogin)
		return
	}
	c.authenticated(u.User)
	c.Deliver(protocol.Ok{Code: protocol.OkLogin, Data: token})
}

func (c *Conn) register(u protocol.Register) {
	token, err := c.srv.auth.Register(u.User, u.Pass)
	c.recordAuth("register", err)
	if err != nil {
		c.authFailed(err, protocol.ErrRegister)
		return
	}
	c.authenticated(u.User)
	c.Deliver(protocol.Ok{Code: protocol.OkRegister, Data: token})
}

func (c *Conn) loginToken(u protocol.TokenLogin) {
	user, token, err := c.srv.auth.LoginToken(u.Token)
	c.recordAuth("token", err)
	if err != nil {
		c.authFailed(err, protocol.ErrToken)
		return
	}
	c.authenticated(user)
	c.Deliver(protocol.Ok{Code: protocol.OkLogin, Data: token})
}

// authenticated switches the connection to user. Re-authenticating from a
// room leaves it first.
func (c *Conn) authenticated(user string) {
	if c.user != user {
		c.leaveRoom()
	}
	c.user = user
	c.logger.Info().Str("user", user).Msg("Authenticated")
}

func (c *Conn) authFailed(err error, code protocol.ErrCode) {
	ev := c.logger.Info()
	if !isAuthError(err) {
		ev = c.logger.Error()
	}
	ev.Err(err).Str("code", string(code)).Msg("Authentication failed")
	c.Deliver(protocol.Err{Code: code})
}

func (c *Conn) recordAuth(method string, err error) {
	c.srv.stats.RecordAuth(err == nil)
	metrics.AuthTotal.WithLabelValues(method, metrics.Result(err)).Inc()
}

func isAuthError(err error) bool {
	return errors.Is(err, store.ErrBadCredentials) ||
		errors.Is(err, store.ErrUserExists) ||
		errors.Is(err, store.ErrInvalidToken) ||
		errors.Is(err, store.ErrInvalidUsername)
}
