package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/BabyPolarisu/unimarket/internal/database"
	"github.com/BabyPolarisu/unimarket/internal/server"
	"github.com/BabyPolarisu/unimarket/internal/types"
	"github.com/gorilla/websocket"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	DisplayName   string  `json:"display_name"`
	AvatarURL     *string `json:"avatar_url"`
	ChatAvatarURL *string `json:"chat_avatar_url"`
}

type CreateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PriceCents  int64   `json:"price_cents"`
	ImageURL    *string `json:"image_url"`
}

type SendMessageRequest struct {
	RoomId   string  `json:"room_id"`
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

// MessageResponse is a single history entry, shaped identically to the
// payload pushed over live connections so clients render both the same way.
type MessageResponse struct {
	Id           int     `json:"id"`
	SenderId     int     `json:"sender_id"`
	Content      string  `json:"content"`
	ImageURL     *string `json:"image_url"`
	Timestamp    string  `json:"timestamp"`
	SenderAvatar *string `json:"sender_avatar"`
}

type MessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

func (s *UniMarketApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func userFromDb(dbUser database.User) types.User {
	return types.User{
		Id:            dbUser.Id,
		Username:      dbUser.Username,
		EmailAddress:  dbUser.EmailAddress,
		DisplayName:   dbUser.DisplayName,
		AvatarURL:     dbUser.AvatarURL,
		ChatAvatarURL: dbUser.ChatAvatarURL,
		CreatedAt:     dbUser.CreatedAt,
		UpdatedAt:     dbUser.UpdatedAt,
	}
}

func productFromDb(dbProduct database.Product) types.Product {
	return types.Product{
		Id:          dbProduct.Id,
		Name:        dbProduct.Name,
		Description: dbProduct.Description,
		PriceCents:  dbProduct.PriceCents,
		ImageURL:    dbProduct.ImageURL,
		Status:      dbProduct.Status,
		SellerId:    dbProduct.SellerId,
		CreatedAt:   dbProduct.CreatedAt,
		UpdatedAt:   dbProduct.UpdatedAt,
	}
}

func roomFromDb(dbRoom database.Room) types.Room {
	return types.Room{
		Id:          dbRoom.Id,
		ExternalId:  dbRoom.ExternalId,
		ProductId:   dbRoom.ProductId,
		ProductName: dbRoom.ProductName,
		BuyerId:     dbRoom.BuyerId,
		SellerId:    dbRoom.SellerId,
		CreatedAt:   dbRoom.CreatedAt,
	}
}

func (s *UniMarketApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, userFromDb(newUser))
}

func (s *UniMarketApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u := userFromDb(dbUser)

	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, u)
}

func (s *UniMarketApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *UniMarketApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userFromDb(user))
}

func (s *UniMarketApp) account(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.session(w, r)
	case http.MethodPut:
		s.updateProfile(w, r)
	default:
		errResp := NewMethodNotAllowedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

func (s *UniMarketApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.UpdateProfile(database.UpdateProfileParams{
		UserId:        userId,
		DisplayName:   req.DisplayName,
		AvatarURL:     req.AvatarURL,
		ChatAvatarURL: req.ChatAvatarURL,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userFromDb(dbUser))
}

func (s *UniMarketApp) createProduct(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Name == "" || req.PriceCents < 0 {
		errResp := NewValidationError("product requires a name and a non-negative price")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newProduct, err := s.db.CreateProduct(database.CreateProductParams{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		ImageURL:    req.ImageURL,
		SellerId:    userId,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, productFromDb(newProduct))
}

func (s *UniMarketApp) listProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbProducts, err := s.db.ListActiveProducts(limit)
	if err != nil {
		s.log.Println("list products:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	products := make([]types.Product, 0, len(dbProducts))
	for _, p := range dbProducts {
		products = append(products, productFromDb(p))
	}

	s.writeJson(w, http.StatusOK, products)
}

// listMyProducts returns every product the caller is selling, regardless of
// status, so sellers can see their inactive listings too.
func (s *UniMarketApp) listMyProducts(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbProducts, err := s.db.ListProductsBySeller(userId)
	if err != nil {
		s.log.Println("list products by seller:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	products := make([]types.Product, 0, len(dbProducts))
	for _, p := range dbProducts {
		products = append(products, productFromDb(p))
	}

	s.writeJson(w, http.StatusOK, products)
}

func (s *UniMarketApp) getProduct(w http.ResponseWriter, r *http.Request) {
	productId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbProduct, err := s.db.GetProductById(productId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, productFromDb(dbProduct))
}

// startConversation opens (or reopens) the buyer's room for a product. The
// room is keyed on (product, buyer), so repeated calls return the same room.
func (s *UniMarketApp) startConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	productId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	product, err := s.db.GetProductById(productId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if product.SellerId == userId {
		errResp := NewValidationError(server.ErrSelfConversation.Error())
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, created, err := s.db.GetOrCreateRoom(database.CreateRoomParams{
		ExternalId: sid,
		ProductId:  product.Id,
		BuyerId:    userId,
		SellerId:   product.SellerId,
	})
	if err != nil {
		s.log.Println("get or create room:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	s.writeJson(w, status, roomFromDb(room))
}

func (s *UniMarketApp) listRooms(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRooms, err := s.db.ListRoomsForUser(userId)
	if err != nil {
		s.log.Println("list rooms:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, dbRoom := range dbRooms {
		rooms = append(rooms, roomFromDb(dbRoom))
	}

	s.writeJson(w, http.StatusOK, rooms)
}

// deleteRoom removes a conversation and its messages (the messages cascade
// with the room row) and evicts the live room actor so no connection keeps
// relaying into a deleted room.
func (s *UniMarketApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// non-participants get the same answer as a missing room
	if !roomFromDb(room).IsParticipant(userId) {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteRoom(room.Id); err != nil {
		s.log.Println("delete room:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.UnloadRoom(r.Context(), room.ExternalId); err != nil {
		s.log.Println("unload deleted room:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

// sendMessage is the HTTP fallback send path. It funnels into the same
// per-room operation as live connections, so ordering and notification
// behavior are identical.
func (s *UniMarketApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.RoomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.cs.SendMessage(r.Context(), req.RoomId, userId, req.Content, req.ImageURL)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, server.ErrRoomNotFound), errors.Is(err, server.ErrUnauthorized):
			// non-participants get the same answer as a missing room
			errResp = NewNotFoundError()
		case errors.Is(err, server.ErrEmptyMessage):
			errResp = NewValidationError(err.Error())
		default:
			s.log.Println("send message:", err)
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, MessageResponse{
		Id:        msg.Id,
		SenderId:  msg.SenderId,
		Content:   msg.Content,
		ImageURL:  msg.ImageURL,
		Timestamp: msg.Timestamp.Format(server.TimestampLayout),
	})
}

// getMessages serves incremental history polls. Clients pass the id of the
// last message they hold and receive everything newer, oldest first.
func (s *UniMarketApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("room_id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var lastId, limit int
	var err error

	if lastIdStr := r.URL.Query().Get("last_id"); lastIdStr != "" {
		lastId, err = strconv.Atoi(lastIdStr)
		if err != nil || lastId < 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	limit = s.messagePageLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// non-participants get the same answer as a missing room
	if !roomFromDb(room).IsParticipant(userId) {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMessages, err := s.db.GetMessagesSince(room.Id, lastId, limit)
	if err != nil {
		s.log.Println("get messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	avatars := s.participantAvatars(room)

	resp := MessagesResponse{Messages: make([]MessageResponse, 0, len(dbMessages))}
	for _, msg := range dbMessages {
		resp.Messages = append(resp.Messages, MessageResponse{
			Id:           msg.Id,
			SenderId:     msg.SenderId,
			Content:      msg.Content,
			ImageURL:     msg.ImageURL,
			Timestamp:    msg.CreatedAt.Format(server.TimestampLayout),
			SenderAvatar: avatars[msg.SenderId],
		})
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *UniMarketApp) participantAvatars(room database.Room) map[int]*string {
	avatars := make(map[int]*string, 2)
	for _, participantId := range []int{room.BuyerId, room.SellerId} {
		dbUser, err := s.db.GetAccountById(participantId)
		if err != nil {
			s.log.Printf("load participant %d: %v", participantId, err)
			continue
		}

		avatars[participantId] = userFromDb(dbUser).Avatar()
	}

	return avatars
}

// listNotifications returns the caller's notifications, newest first, and
// marks every unread one as read: opening the list is what clears the badge.
func (s *UniMarketApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbNotifications, err := s.db.ListNotifications(userId)
	if err != nil {
		s.log.Println("list notifications:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.MarkNotificationsRead(userId); err != nil {
		// the list is still correct; the badge clears on the next read
		s.log.Println("mark notifications read:", err)
	}

	notifications := make([]types.Notification, 0, len(dbNotifications))
	for _, n := range dbNotifications {
		notifications = append(notifications, types.Notification{
			Id:          n.Id,
			RecipientId: n.RecipientId,
			Title:       n.Title,
			Body:        n.Body,
			Link:        n.Link,
			IsRead:      n.IsRead,
			CreatedAt:   n.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, notifications)
}

func (s *UniMarketApp) unreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.db.CountUnreadNotifications(userId)
	if err != nil {
		s.log.Println("count unread notifications:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, UnreadCountResponse{UnreadCount: count})
}

func (s *UniMarketApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(userFromDb(dbUser), conn, s.cs, s.log, s.stats)
	s.cs.RegisterClient(client)

	if err := s.cs.Join(r.Context(), roomId, client); err != nil {
		s.log.Printf("join room %q: %v", roomId, err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second))
		conn.Close()
		s.cs.DeregisterClient(client)
		return
	}

	go client.Write()
	go client.Read()
}
