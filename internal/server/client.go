package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/BabyPolarisu/unimarket/internal/stats"
	"github.com/BabyPolarisu/unimarket/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is a single live connection. A connection subscribes to exactly one
// room's group for its lifetime: one connection per open chat view.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	stats      stats.StatsProvider
	user       types.User

	room     *Room
	roomLock sync.RWMutex

	send     chan any
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger, su stats.StatsProvider) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		stats:      su,
		user:       user,
		send:       make(chan any, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(payload)
			if err != nil {
				c.log.Println("failed to serialize payload:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Println("error parsing frame:", err)
			c.queuePayload(errBadFrame("invalid message format"))
			continue
		}

		c.handleFrame(&frame)
	}
}

// handleFrame funnels an inbound frame into the room actor and relays the
// result. The authenticated connection identity is authoritative: a frame
// claiming another sender_id is rejected rather than trusted.
func (c *Client) handleFrame(frame *InboundFrame) {
	if frame.SenderId != 0 && frame.SenderId != c.user.Id {
		c.queuePayload(errBadFrame("sender_id does not match connection identity"))
		return
	}

	room := c.getRoom()
	if room == nil {
		c.queuePayload(errForFrame(ErrRoomNotFound))
		return
	}

	req := &publishRequest{
		roomId:   room.externalId,
		senderId: c.user.Id,
		content:  frame.Message,
		resp:     make(chan publishResult, 1),
	}

	select {
	case room.publishChan <- req:
	default:
		c.log.Printf("publish channel full for room %q", room.externalId)
		c.queuePayload(errServiceUnavailable())
		return
	}

	if res := <-req.resp; res.err != nil {
		c.queuePayload(errForFrame(res.err))
	}
}

func (c *Client) queuePayload(payload any) bool {
	select {
	case c.send <- payload:
	default:
		c.log.Println("failed to queue payload, channel is full")
		return false
	}

	return true
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) cleanup() {
	c.leaveRoom()
	c.chatServer.DeregisterClient(c)
	c.close()
}

func (c *Client) close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) leaveRoom() {
	room := c.getRoom()
	if room == nil {
		return
	}

	req := &leaveRequest{client: c, done: make(chan struct{})}
	select {
	case room.leaveChan <- req:
		<-req.done
	case <-room.done:
		// room exited first; nothing left to leave
	}
}

func (c *Client) attachRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = r
}

func (c *Client) detachRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	if c.room == r {
		c.room = nil
	}
}

func (c *Client) getRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()
	return c.room
}
