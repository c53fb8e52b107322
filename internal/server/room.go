package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/BabyPolarisu/unimarket/internal/database"
	"github.com/BabyPolarisu/unimarket/internal/stats"
	"github.com/BabyPolarisu/unimarket/internal/types"
)

const idleRoomTimeout = 30 * time.Second

type joinRequest struct {
	roomId string
	client *Client
	done   chan error
}

type leaveRequest struct {
	client *Client
	done   chan struct{}
}

type publishRequest struct {
	roomId   string
	senderId int
	content  string
	imageURL *string
	resp     chan publishResult
}

type publishResult struct {
	msg types.Message
	err error
}

type deleteRoomRequest struct {
	externalId string
	done       chan struct{}
}

// Room is a live conversation actor. It owns the room's group membership and
// serializes every operation on the room, which is what guarantees that
// message ids are assigned in fan-out order.
type Room struct {
	id          int
	externalId  string
	productName string
	buyerId     int
	sellerId    int
	// users caches the two participants for avatar resolution on fan-out.
	users map[int]types.User

	cs    *ChatServer
	db    database.UniMarketRepository
	stats stats.StatsProvider
	log   *log.Logger

	joinChan    chan *joinRequest
	leaveChan   chan *leaveRequest
	publishChan chan *publishRequest

	clients    map[*Client]struct{}
	clientLock sync.RWMutex

	// killTimer unloads the room once no connection has been subscribed for
	// idleRoomTimeout; membership is ephemeral, so an empty room actor holds
	// no state worth keeping.
	killTimer *time.Timer
	exit      chan struct{}
	done      chan struct{}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)
	r.killTimer = time.NewTimer(idleRoomTimeout)

	for {
		select {
		case req := <-r.joinChan:
			r.handleJoin(req)
		case req := <-r.leaveChan:
			r.handleLeave(req)
		case req := <-r.publishChan:
			r.handlePublish(req)
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case <-r.exit:
			r.handleRoomExit()
			return
		}
	}
}

func (r *Room) isParticipant(userId int) bool {
	return userId == r.buyerId || userId == r.sellerId
}

func (r *Room) handleJoin(req *joinRequest) {
	c := req.client
	if !r.isParticipant(c.user.Id) {
		r.log.Printf("rejecting join from %q to room %q", c.user.Username, r.externalId)
		req.done <- ErrUnauthorized
		return
	}

	r.killTimer.Stop()
	r.addClient(c)
	req.done <- nil
}

// handleLeave detaches a connection from the group. Removing a connection
// that already left is a no-op: disconnects race with explicit leaves.
func (r *Room) handleLeave(req *leaveRequest) {
	r.removeClient(req.client)
	close(req.done)
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.externalId)
	select {
	case r.cs.unloadRoomChan <- r.externalId:
	default:
		// retry on the next tick if the server is busy
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit() {
	r.log.Printf("room %q is exiting", r.externalId)

	r.clientLock.Lock()
	for c := range r.clients {
		c.detachRoom(r)
	}
	r.clients = make(map[*Client]struct{})
	r.clientLock.Unlock()

	// requests queued behind the exit must not be dropped: hand joins and
	// publishes back to the server so they resolve against a freshly loaded
	// room, since a publish racing an idle unload still targets a room that
	// exists
	for {
		select {
		case req := <-r.joinChan:
			r.requeueJoin(req)
		case req := <-r.publishChan:
			r.requeuePublish(req)
		case req := <-r.leaveChan:
			close(req.done)
		default:
			close(r.done)
			return
		}
	}
}

func (r *Room) requeueJoin(req *joinRequest) {
	select {
	case r.cs.joinChan <- req:
	default:
		req.done <- ErrRoomNotFound
	}
}

func (r *Room) requeuePublish(req *publishRequest) {
	select {
	case r.cs.publishChan <- req:
	default:
		req.resp <- publishResult{err: ErrRoomNotFound}
	}
}

// handlePublish is the relay's send path. The message is validated, then
// persisted (the commit point), then the caller is acknowledged, then the
// payload is fanned out to the live group and a notification raised for the
// counterparty. Failures past the commit point are logged, never surfaced.
func (r *Room) handlePublish(req *publishRequest) {
	if !r.isParticipant(req.senderId) {
		req.resp <- publishResult{err: ErrUnauthorized}
		return
	}

	if req.content == "" && (req.imageURL == nil || *req.imageURL == "") {
		req.resp <- publishResult{err: ErrEmptyMessage}
		return
	}

	dbMsg, err := r.db.CreateMessage(database.CreateMessageParams{
		RoomId:   r.id,
		SenderId: req.senderId,
		Content:  req.content,
		ImageURL: req.imageURL,
	})
	if err != nil {
		r.log.Println("create message:", err)
		req.resp <- publishResult{err: fmt.Errorf("create message: %w", err)}
		return
	}

	msg := types.Message{
		Id:        dbMsg.Id,
		RoomId:    dbMsg.RoomId,
		SenderId:  dbMsg.SenderId,
		Content:   dbMsg.Content,
		ImageURL:  dbMsg.ImageURL,
		Timestamp: dbMsg.CreatedAt,
	}

	// commit point: the message is durable, acknowledge the sender
	req.resp <- publishResult{msg: msg}
	r.stats.Incr(MetricMessagesSent)

	r.broadcast(newMessagePayload(msg, r.users[req.senderId]))
	r.notifyParticipants(msg)
}

// notifyParticipants raises one notification per non-sender participant on
// every message, whether or not they hold a live connection. Live delivery
// and notifications are independent channels.
func (r *Room) notifyParticipants(msg types.Message) {
	body := msg.Content
	if body == "" {
		body = "Sent an image"
	}

	// the sender was validated as a participant on publish, so the recipient
	// is always the other side of the conversation
	recipientId := types.Room{BuyerId: r.buyerId, SellerId: r.sellerId}.Counterparty(msg.SenderId)

	_, err := r.db.CreateNotification(database.CreateNotificationParams{
		RecipientId: recipientId,
		Title:       "New message about " + r.productName,
		Body:        body,
		Link:        "/chat/" + r.externalId,
	})
	if err != nil {
		r.log.Printf("create notification for user %d in room %q: %v", recipientId, r.externalId, err)
		return
	}

	r.stats.Incr(MetricNotificationsCreated)
}

func (r *Room) broadcast(payload *MessagePayload) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for c := range r.clients {
		if !c.queuePayload(payload) {
			r.log.Printf("dropping message for slow connection of %q in room %q", c.user.Username, r.externalId)
		}
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	c.attachRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.detachRoom(r)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) clientCount() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	return len(r.clients)
}
