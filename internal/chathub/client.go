package chathub

import (
	"batchchat/backend/internal/models"
	"errors"
)

// ConnState is the lifecycle state of one connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateJoined
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client is one live connection to a room. It abstracts the transport so the
// hub can manage any kind of connection uniformly.
type Client interface {
	// GetID identifies the connection; a user may hold several.
	GetID() string
	// GetUserID returns the authenticated user, or "" for an anonymous connection.
	GetUserID() string
	GetRoomID() uint
	State() ConnState

	// Send hands a frame to the connection without blocking. An error means the
	// connection cannot take it and should be evicted.
	Send(frame models.OutboundFrame) error

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. Calling it twice is harmless.
	Close()
}
