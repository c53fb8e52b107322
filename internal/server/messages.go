package server

import (
	"net/http"

	"github.com/BabyPolarisu/unimarket/internal/types"
)

// TimestampLayout is the clock-only format used for message timestamps on
// the wire, matching what chat views render.
const TimestampLayout = "15:04"

// InboundFrame is the wire format of a client frame on a live connection.
type InboundFrame struct {
	Message  string `json:"message"`
	SenderId int    `json:"sender_id"`
}

// MessagePayload is the wire format of a broadcast message pushed to every
// live connection in a room's group.
type MessagePayload struct {
	SenderId     int     `json:"sender_id"`
	Content      string  `json:"content"`
	ImageURL     *string `json:"image_url"`
	Timestamp    string  `json:"timestamp"`
	SenderAvatar *string `json:"sender_avatar"`
}

// ErrorPayload is pushed to a single connection when one of its frames is
// rejected. Codes follow HTTP conventions.
type ErrorPayload struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func newMessagePayload(msg types.Message, sender types.User) *MessagePayload {
	return &MessagePayload{
		SenderId:     msg.SenderId,
		Content:      msg.Content,
		ImageURL:     msg.ImageURL,
		Timestamp:    msg.Timestamp.Format(TimestampLayout),
		SenderAvatar: sender.Avatar(),
	}
}

func errBadFrame(msg string) *ErrorPayload {
	return &ErrorPayload{Code: http.StatusBadRequest, Error: msg}
}

func errForFrame(err error) *ErrorPayload {
	switch err {
	case ErrUnauthorized:
		return &ErrorPayload{Code: http.StatusForbidden, Error: err.Error()}
	case ErrEmptyMessage:
		return &ErrorPayload{Code: http.StatusBadRequest, Error: err.Error()}
	case ErrRoomNotFound:
		return &ErrorPayload{Code: http.StatusNotFound, Error: err.Error()}
	default:
		return &ErrorPayload{Code: http.StatusInternalServerError, Error: "internal server error"}
	}
}

func errServiceUnavailable() *ErrorPayload {
	return &ErrorPayload{Code: http.StatusServiceUnavailable, Error: "service unavailable"}
}
