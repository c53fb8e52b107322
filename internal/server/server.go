package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/BabyPolarisu/unimarket/internal/database"
	"github.com/BabyPolarisu/unimarket/internal/stats"
	"github.com/BabyPolarisu/unimarket/internal/types"
)

const (
	MetricActiveConnections    = "ActiveConnections"
	MetricActiveRooms          = "ActiveRooms"
	MetricMessagesSent         = "MessagesSent"
	MetricNotificationsCreated = "NotificationsCreated"
)

// ChatServer is the presence registry and broadcast relay. It owns the map of
// live room actors and routes joins and publishes to them. It is constructed
// in main and injected wherever needed; there is no package-level state, so a
// distributed group backend can replace it behind the same surface.
type ChatServer struct {
	log   *log.Logger
	db    database.UniMarketRepository
	stats stats.StatsProvider

	clients     map[*Client]struct{}
	clientsLock sync.Mutex

	// rooms is owned by the Run goroutine.
	rooms          map[string]*Room
	joinChan       chan *joinRequest
	publishChan    chan *publishRequest
	unloadRoomChan chan string
	deleteRoomChan chan *deleteRoomRequest

	stop chan struct{}
	done chan struct{}
}

func NewChatServer(logger *log.Logger, db database.UniMarketRepository, su stats.StatsProvider) (*ChatServer, error) {
	for _, metric := range []string{
		MetricActiveConnections,
		MetricActiveRooms,
		MetricMessagesSent,
		MetricNotificationsCreated,
	} {
		su.RegisterMetric(metric)
	}

	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		joinChan:       make(chan *joinRequest, 256),
		publishChan:    make(chan *publishRequest, 256),
		unloadRoomChan: make(chan string, 256),
		deleteRoomChan: make(chan *deleteRoomRequest, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case req := <-cs.joinChan:
			room, err := cs.roomForId(req.roomId)
			if err != nil {
				req.done <- err
				continue
			}
			room.joinChan <- req
		case req := <-cs.publishChan:
			room, err := cs.roomForId(req.roomId)
			if err != nil {
				req.resp <- publishResult{err: err}
				continue
			}
			room.publishChan <- req
		case id := <-cs.unloadRoomChan:
			cs.unloadRoom(id)
		case req := <-cs.deleteRoomChan:
			cs.removeRoom(req.externalId)
			close(req.done)
		case <-cs.stop:
			cs.log.Println("shutting down rooms")
			for _, r := range cs.rooms {
				close(r.exit)
				<-r.done
			}
			cs.rooms = make(map[string]*Room)

			close(cs.done)
			return
		}
	}
}

// roomForId returns the live actor for a room, loading it from the database
// on demand. Loaded state is only the immutable room row plus its two
// participants; group membership always starts empty.
func (cs *ChatServer) roomForId(externalId string) (*Room, error) {
	if room, ok := cs.rooms[externalId]; ok {
		return room, nil
	}

	dbRoom, err := cs.db.GetRoomByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	room := &Room{
		id:          dbRoom.Id,
		externalId:  dbRoom.ExternalId,
		productName: dbRoom.ProductName,
		buyerId:     dbRoom.BuyerId,
		sellerId:    dbRoom.SellerId,
		users:       cs.loadParticipants(dbRoom),
		cs:          cs,
		db:          cs.db,
		stats:       cs.stats,
		log:         cs.log,
		joinChan:    make(chan *joinRequest, 256),
		leaveChan:   make(chan *leaveRequest, 256),
		publishChan: make(chan *publishRequest, 256),
		clients:     make(map[*Client]struct{}),
		exit:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	cs.rooms[room.externalId] = room
	cs.stats.Incr(MetricActiveRooms)
	go room.start()

	return room, nil
}

func (cs *ChatServer) loadParticipants(room database.Room) map[int]types.User {
	users := make(map[int]types.User, 2)
	for _, userId := range []int{room.BuyerId, room.SellerId} {
		dbUser, err := cs.db.GetAccountById(userId)
		if err != nil {
			cs.log.Printf("load participant %d for room %q: %v", userId, room.ExternalId, err)
			users[userId] = types.User{Id: userId}
			continue
		}

		users[userId] = types.User{
			Id:            dbUser.Id,
			Username:      dbUser.Username,
			DisplayName:   dbUser.DisplayName,
			AvatarURL:     dbUser.AvatarURL,
			ChatAvatarURL: dbUser.ChatAvatarURL,
		}
	}

	return users
}

func (cs *ChatServer) unloadRoom(externalId string) {
	room, ok := cs.rooms[externalId]
	if !ok {
		return
	}

	// a join can race the idle timeout; keep the room if it picked up clients
	if room.clientCount() > 0 {
		return
	}

	cs.log.Printf("unloading idle room %q", externalId)
	cs.removeRoom(externalId)
}

// removeRoom stops a room actor unconditionally, detaching any connections
// still in its group.
func (cs *ChatServer) removeRoom(externalId string) {
	room, ok := cs.rooms[externalId]
	if !ok {
		return
	}

	delete(cs.rooms, externalId)
	cs.stats.Decr(MetricActiveRooms)

	close(room.exit)
	<-room.done
}

// UnloadRoom evicts a room's live actor, kicking any subscribed connections.
// Callers use it after deleting the room row so no connection keeps relaying
// into a room that no longer exists. Unloading a room that is not live is a
// no-op.
func (cs *ChatServer) UnloadRoom(ctx context.Context, externalId string) error {
	req := &deleteRoomRequest{externalId: externalId, done: make(chan struct{})}

	select {
	case cs.deleteRoomChan <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join subscribes a live connection to a room's group. It returns
// ErrUnauthorized when the connection identity is not a participant and
// ErrRoomNotFound when the room id does not resolve.
func (cs *ChatServer) Join(ctx context.Context, roomId string, c *Client) error {
	req := &joinRequest{roomId: roomId, client: c, done: make(chan error, 1)}

	select {
	case cs.joinChan <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendMessage persists and fans out a message. The HTTP send path and the
// live-connection path both end up in the same per-room actor operation, so
// the ordering guarantees are identical for both.
func (cs *ChatServer) SendMessage(ctx context.Context, roomId string, senderId int, content string, imageURL *string) (types.Message, error) {
	req := &publishRequest{
		roomId:   roomId,
		senderId: senderId,
		content:  content,
		imageURL: imageURL,
		resp:     make(chan publishResult, 1),
	}

	select {
	case cs.publishChan <- req:
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}

	select {
	case res := <-req.resp:
		return res.msg, res.err
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.stats.Incr(MetricActiveConnections)
}

func (cs *ChatServer) DeregisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(MetricActiveConnections)
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.close()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
