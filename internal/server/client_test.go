package server

import (
	"net/http"
	"testing"

	"github.com/BabyPolarisu/unimarket/internal/database"
	"github.com/BabyPolarisu/unimarket/internal/stats"
	"github.com/BabyPolarisu/unimarket/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_handleFrame(t *testing.T) {
	t.Run("rejects mismatched sender id", func(t *testing.T) {
		c := newTestClient(t, types.User{Id: 1, Username: "buyer"})

		c.handleFrame(&InboundFrame{Message: "hi", SenderId: 2})

		payload := <-c.send
		errPayload, ok := payload.(*ErrorPayload)
		assert.True(t, ok, "expected an error payload")
		assert.Equal(t, http.StatusBadRequest, errPayload.Code, "expected bad request code")
	})

	t.Run("rejects frame without a joined room", func(t *testing.T) {
		c := newTestClient(t, types.User{Id: 1, Username: "buyer"})

		c.handleFrame(&InboundFrame{Message: "hi"})

		payload := <-c.send
		errPayload, ok := payload.(*ErrorPayload)
		assert.True(t, ok, "expected an error payload")
		assert.Equal(t, http.StatusNotFound, errPayload.Code, "expected not found code")
	})

	t.Run("forwards frame to the room and relays errors", func(t *testing.T) {
		room := newTestRoom(t, &database.MockUniMarketRepository{}, &stats.MockStatsUpdater{})
		c := newTestClient(t, types.User{Id: 1, Username: "buyer"})
		room.addClient(c)

		go func() {
			req := <-room.publishChan
			assert.Equal(t, 1, req.senderId, "expected connection identity as sender")
			assert.Equal(t, "hi", req.content, "expected frame content")
			req.resp <- publishResult{err: ErrEmptyMessage}
		}()

		c.handleFrame(&InboundFrame{Message: "hi", SenderId: 1})

		payload := <-c.send
		errPayload, ok := payload.(*ErrorPayload)
		assert.True(t, ok, "expected an error payload")
		assert.Equal(t, http.StatusBadRequest, errPayload.Code, "expected bad request code")
	})

	t.Run("replies unavailable when the room is backed up", func(t *testing.T) {
		room := newTestRoom(t, &database.MockUniMarketRepository{}, &stats.MockStatsUpdater{})
		room.publishChan = make(chan *publishRequest) // unbuffered, nobody reading
		c := newTestClient(t, types.User{Id: 1, Username: "buyer"})
		room.addClient(c)

		c.handleFrame(&InboundFrame{Message: "hi"})

		payload := <-c.send
		errPayload, ok := payload.(*ErrorPayload)
		assert.True(t, ok, "expected an error payload")
		assert.Equal(t, http.StatusServiceUnavailable, errPayload.Code, "expected service unavailable code")
	})
}

func Test_queuePayload(t *testing.T) {
	c := newTestClient(t, types.User{Id: 1, Username: "buyer"})
	c.send = make(chan any, 1)

	assert.True(t, c.queuePayload("first"), "expected queue to accept payload")
	assert.False(t, c.queuePayload("second"), "expected queue to report a full channel")
}
