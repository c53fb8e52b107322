package server

import "errors"

var (
	// ErrUnauthorized is returned when a user who is not a participant of a
	// room attempts to join, send to, or read it.
	ErrUnauthorized = errors.New("user is not a participant of this room")
	// ErrSelfConversation is returned when a user attempts to open a room
	// about their own product.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	// ErrEmptyMessage is returned when a message carries neither text nor an
	// image attachment.
	ErrEmptyMessage = errors.New("message requires text content or an image")
	// ErrRoomNotFound is returned when a room id does not resolve.
	ErrRoomNotFound = errors.New("room not found")
)
