package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BabyPolarisu/unimarket/internal/config"
	"github.com/BabyPolarisu/unimarket/internal/database"
	"github.com/BabyPolarisu/unimarket/internal/server"
	"github.com/BabyPolarisu/unimarket/internal/stats"
	"github.com/BabyPolarisu/unimarket/internal/testutil"
	"github.com/BabyPolarisu/unimarket/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestApp(t *testing.T, db database.UniMarketRepository, cs *server.ChatServer) *UniMarketApp {
	return NewUniMarketApp(http.NewServeMux(), testutil.TestLogger(t), cs, db, &stats.MockStatsUpdater{}, &config.Config{
		SigningKey:       []byte("test-signing-key"),
		MessagePageLimit: 100,
	})
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("encode request body: %v", err)
	}
	return buf
}

func newRunningChatServer(t *testing.T, db database.UniMarketRepository) *server.ChatServer {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(4)
	su.On("Incr", mock.Anything)
	su.On("Decr", mock.Anything)

	cs, err := server.NewChatServer(testutil.TestLogger(t), db, su)
	if err != nil {
		t.Fatalf("new chat server: %v", err)
	}
	go cs.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		cs.Shutdown(ctx)
	})
	return cs
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockUniMarketRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, mockRepo, nil)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	expectedUser := database.User{
		Id:           1,
		Username:     "newuser",
		EmailAddress: "newuser@example.com",
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	tcases := []struct {
		name        string
		body        any
		success     bool
		mockErr     error
		expectedErr *ApiError
	}{
		{
			name: "successfully creates a new account",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			success: true,
		},
		{
			name:        "fails with invalid json body",
			body:        "invalid json",
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with missing username",
			body: RegisterRequest{
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails when the database errors",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			mockErr:     errors.New("db error"),
			expectedErr: NewInternalServerError(errors.New("db error")),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockUniMarketRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.success || tc.mockErr != nil {
				mockRepo.On("CreateAccount", mock.MatchedBy(func(params database.CreateAccountParams) bool {
					return params.Username == expectedUser.Username &&
						params.EmailAddress == expectedUser.EmailAddress &&
						params.PasswordHash != ""
				})).Return(expectedUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo, nil)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, tc.body))
			app.createAccount(rr, req)

			if tc.expectedErr != nil {
				assert.Equal(t, tc.expectedErr.StatusCode, rr.Code, "expected error status code")
				return
			}

			assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")

			var u types.User
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
			assert.Equal(t, expectedUser.Id, u.Id, "expected user id in response")
			assert.Equal(t, expectedUser.Username, u.Username, "expected username in response")
		})
	}
}

func TestLoginHandler(t *testing.T) {
	pwdHash, err := hashPassword("password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	dbUser := database.User{
		Id:           1,
		Username:     "user",
		EmailAddress: "user@example.com",
		PasswordHash: pwdHash,
	}

	tcases := []struct {
		name         string
		body         any
		mockUser     database.User
		mockErr      error
		expectedCode int
		expectCookie bool
	}{
		{
			name:         "successful login sets session cookie",
			body:         LoginRequest{Email: dbUser.EmailAddress, Password: "password"},
			mockUser:     dbUser,
			expectedCode: http.StatusOK,
			expectCookie: true,
		},
		{
			name:         "wrong password",
			body:         LoginRequest{Email: dbUser.EmailAddress, Password: "wrong"},
			mockUser:     dbUser,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "unknown email",
			body:         LoginRequest{Email: "nobody@example.com", Password: "password"},
			mockErr:      sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "missing credentials",
			body:         LoginRequest{},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockUniMarketRepository{}
			defer mockRepo.AssertExpectations(t)

			lr, isLogin := tc.body.(LoginRequest)
			if isLogin && lr.Email != "" && lr.Password != "" {
				mockRepo.On("GetAccountByEmail", lr.Email).Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo, nil)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, tc.body))
			app.login(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code")

			var sessionCookie *http.Cookie
			for _, cookie := range rr.Result().Cookies() {
				if cookie.Name == tokenCookieKey {
					sessionCookie = cookie
				}
			}

			if tc.expectCookie {
				assert.NotNil(t, sessionCookie, "expected session cookie to be set")
				assert.NotEmpty(t, sessionCookie.Value, "expected token in session cookie")
			} else {
				assert.Nil(t, sessionCookie, "expected no session cookie")
			}
		})
	}
}

func TestStartConversationHandler(t *testing.T) {
	product := database.Product{
		Id:       5,
		Name:     "Desk Lamp",
		SellerId: 2,
		Status:   "active",
	}
	room := database.Room{
		Id:          1,
		ExternalId:  "EoGKUXPHgz",
		ProductId:   product.Id,
		ProductName: product.Name,
		BuyerId:     1,
		SellerId:    product.SellerId,
	}

	tcases := []struct {
		name         string
		userId       int
		productErr   error
		created      bool
		roomErr      error
		expectedCode int
	}{
		{
			name:         "creates a room on first contact",
			userId:       1,
			created:      true,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "returns the existing room on repeat contact",
			userId:       1,
			created:      false,
			expectedCode: http.StatusOK,
		},
		{
			name:         "rejects the seller messaging themselves",
			userId:       2,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "product not found",
			userId:       1,
			productErr:   sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "room creation fails",
			userId:       1,
			roomErr:      errors.New("db error"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockUniMarketRepository{}
			defer mockRepo.AssertExpectations(t)

			mockRepo.On("GetProductById", product.Id).Return(product, tc.productErr).Once()

			if tc.productErr == nil && tc.userId != product.SellerId {
				mockRepo.On("GetOrCreateRoom", database.CreateRoomParams{
					ExternalId: room.ExternalId,
					ProductId:  product.Id,
					BuyerId:    tc.userId,
					SellerId:   product.SellerId,
				}).Return(room, tc.created, tc.roomErr).Once()
			}

			app := newTestApp(t, mockRepo, nil)
			app.generateShortId = func() (string, error) {
				return room.ExternalId, nil
			}

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/products/5/chat", nil)
			req.SetPathValue("id", "5")
			req = req.WithContext(WithUserId(req.Context(), tc.userId))
			app.startConversation(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code")

			if tc.expectedCode == http.StatusCreated || tc.expectedCode == http.StatusOK {
				var got types.Room
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
				assert.Equal(t, room.ExternalId, got.ExternalId, "expected room external id")
				assert.Equal(t, product.SellerId, got.SellerId, "expected seller id on room")
			}
		})
	}
}

func TestGetMessagesHandler(t *testing.T) {
	avatar := "https://cdn.example.com/buyer.png"
	room := database.Room{
		Id:         1,
		ExternalId: "EoGKUXPHgz",
		BuyerId:    1,
		SellerId:   2,
	}

	t.Run("returns new messages oldest first", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)

		now := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("GetMessagesSince", room.Id, 10, 100).Return([]database.Message{
			{Id: 11, RoomId: room.Id, SenderId: 1, Content: "first", CreatedAt: now},
			{Id: 12, RoomId: room.Id, SenderId: 2, Content: "second", CreatedAt: now},
		}, nil).Once()
		mockRepo.On("GetAccountById", 1).Return(database.User{Id: 1, AvatarURL: &avatar}, nil).Once()
		mockRepo.On("GetAccountById", 2).Return(database.User{Id: 2}, nil).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/messages?room_id="+room.ExternalId+"&last_id=10", nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var resp MessagesResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Len(t, resp.Messages, 2, "expected both new messages")
		assert.Equal(t, 11, resp.Messages[0].Id, "expected oldest message first")
		assert.Equal(t, "14:05", resp.Messages[0].Timestamp, "expected clock-only timestamp")
		assert.Equal(t, &avatar, resp.Messages[0].SenderAvatar, "expected buyer avatar resolved")
		assert.Nil(t, resp.Messages[1].SenderAvatar, "expected no avatar for seller")
	})

	t.Run("non-participant gets not found", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/messages?room_id="+room.ExternalId, nil)
		req = req.WithContext(WithUserId(req.Context(), 99))
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected outsiders to see the same as a missing room")
	})

	t.Run("missing room id", func(t *testing.T) {
		app := newTestApp(t, &database.MockUniMarketRepository{}, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("room not found", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "missing").Return(database.Room{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/messages?room_id=missing", nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})
}

func TestSendMessageHandler(t *testing.T) {
	room := database.Room{
		Id:          1,
		ExternalId:  "EoGKUXPHgz",
		ProductName: "Desk Lamp",
		BuyerId:     1,
		SellerId:    2,
	}

	t.Run("persists and returns the message", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("GetAccountById", 1).Return(database.User{Id: 1}, nil).Once()
		mockRepo.On("GetAccountById", 2).Return(database.User{Id: 2}, nil).Once()
		mockRepo.On("CreateMessage", database.CreateMessageParams{
			RoomId:   room.Id,
			SenderId: 1,
			Content:  "hello",
		}).Return(database.Message{Id: 3, RoomId: room.Id, SenderId: 1, Content: "hello"}, nil).Once()
		mockRepo.On("CreateNotification", mock.Anything).Return(database.Notification{Id: 1}, nil).Once()

		cs := newRunningChatServer(t, mockRepo)
		app := newTestApp(t, mockRepo, cs)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/messages",
			jsonBody(t, SendMessageRequest{RoomId: room.ExternalId, Content: "hello"}))
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.sendMessage(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")

		var resp MessageResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, 3, resp.Id, "expected persisted message id")
		assert.Equal(t, "hello", resp.Content, "expected message content")
	})

	t.Run("empty message is rejected", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("GetAccountById", mock.Anything).Return(database.User{}, nil).Times(2)

		cs := newRunningChatServer(t, mockRepo)
		app := newTestApp(t, mockRepo, cs)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/messages",
			jsonBody(t, SendMessageRequest{RoomId: room.ExternalId}))
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.sendMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("non-participant gets not found", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("GetAccountById", mock.Anything).Return(database.User{}, nil).Times(2)

		cs := newRunningChatServer(t, mockRepo)
		app := newTestApp(t, mockRepo, cs)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/messages",
			jsonBody(t, SendMessageRequest{RoomId: room.ExternalId, Content: "hello"}))
		req = req.WithContext(WithUserId(req.Context(), 99))
		app.sendMessage(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected outsiders to see the same as a missing room")
	})

	t.Run("missing room id", func(t *testing.T) {
		app := newTestApp(t, &database.MockUniMarketRepository{}, nil)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/messages",
			jsonBody(t, SendMessageRequest{Content: "hello"}))
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.sendMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})
}

func TestListNotificationsHandler(t *testing.T) {
	mockRepo := &database.MockUniMarketRepository{}
	defer mockRepo.AssertExpectations(t)

	notifications := []database.Notification{
		{Id: 2, RecipientId: 1, Title: "New message about Desk Lamp", Body: "hello", Link: "/chat/EoGKUXPHgz"},
		{Id: 1, RecipientId: 1, Title: "New message about Desk Lamp", Body: "hi", Link: "/chat/EoGKUXPHgz", IsRead: true},
	}
	mockRepo.On("ListNotifications", 1).Return(notifications, nil).Once()
	mockRepo.On("MarkNotificationsRead", 1).Return(nil).Once()

	app := newTestApp(t, mockRepo, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req = req.WithContext(WithUserId(req.Context(), 1))
	app.listNotifications(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var got []types.Notification
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Len(t, got, 2, "expected all notifications in the list")
	assert.Equal(t, 2, got[0].Id, "expected newest notification first")
}

func TestUnreadNotificationCountHandler(t *testing.T) {
	mockRepo := &database.MockUniMarketRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("CountUnreadNotifications", 1).Return(3, nil).Once()

	app := newTestApp(t, mockRepo, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/unread_count", nil)
	req = req.WithContext(WithUserId(req.Context(), 1))
	app.unreadNotificationCount(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var resp UnreadCountResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.UnreadCount, "expected unread count in response")
}

func TestCreateProductHandler(t *testing.T) {
	product := database.Product{
		Id:       5,
		Name:     "Desk Lamp",
		Status:   "active",
		SellerId: 1,
	}

	tcases := []struct {
		name         string
		body         any
		mockProduct  bool
		expectedCode int
	}{
		{
			name:         "creates a product",
			body:         CreateProductRequest{Name: product.Name, PriceCents: 1500},
			mockProduct:  true,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "rejects a product without a name",
			body:         CreateProductRequest{PriceCents: 1500},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "rejects a negative price",
			body:         CreateProductRequest{Name: product.Name, PriceCents: -1},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockUniMarketRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.mockProduct {
				mockRepo.On("CreateProduct", mock.MatchedBy(func(params database.CreateProductParams) bool {
					return params.Name == product.Name && params.SellerId == 1
				})).Return(product, nil).Once()
			}

			app := newTestApp(t, mockRepo, nil)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/products", jsonBody(t, tc.body))
			req = req.WithContext(WithUserId(req.Context(), 1))
			app.createProduct(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code")

			if tc.expectedCode == http.StatusCreated {
				var got types.Product
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
				assert.Equal(t, "active", got.Status, "expected new products to list as active")
			}
		})
	}
}

func TestListMyProductsHandler(t *testing.T) {
	t.Run("includes inactive listings", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("ListProductsBySeller", 1).Return([]database.Product{
			{Id: 5, Name: "Desk Lamp", Status: "active", SellerId: 1},
			{Id: 6, Name: "Bike Helmet", Status: "sold", SellerId: 1},
		}, nil).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/products/mine", nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.listMyProducts(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		var got []types.Product
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Len(t, got, 2, "expected every listing regardless of status")
		assert.Equal(t, "sold", got[1].Status, "expected sold listing in the list")
	})

	t.Run("database error", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("ListProductsBySeller", 1).Return([]database.Product(nil), errors.New("db error")).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/products/mine", nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.listMyProducts(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
	})
}

func TestDeleteRoomHandler(t *testing.T) {
	room := database.Room{
		Id:         1,
		ExternalId: "EoGKUXPHgz",
		BuyerId:    1,
		SellerId:   2,
	}

	t.Run("participant deletes the room", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("DeleteRoom", room.Id).Return(nil).Once()

		cs := newRunningChatServer(t, mockRepo)
		app := newTestApp(t, mockRepo, cs)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/rooms?id="+room.ExternalId, nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.deleteRoom(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code, "expected status code to be 204")
	})

	t.Run("non-participant gets not found", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/rooms?id="+room.ExternalId, nil)
		req = req.WithContext(WithUserId(req.Context(), 99))
		app.deleteRoom(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected outsiders to see the same as a missing room")
	})

	t.Run("room not found", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "missing").Return(database.Room{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/rooms?id=missing", nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.deleteRoom(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})

	t.Run("missing room id", func(t *testing.T) {
		app := newTestApp(t, &database.MockUniMarketRepository{}, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/rooms", nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.deleteRoom(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("delete fails", func(t *testing.T) {
		mockRepo := &database.MockUniMarketRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("DeleteRoom", room.Id).Return(errors.New("db error")).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/rooms?id="+room.ExternalId, nil)
		req = req.WithContext(WithUserId(req.Context(), 1))
		app.deleteRoom(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
	})
}

func TestListRoomsHandler(t *testing.T) {
	mockRepo := &database.MockUniMarketRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("ListRoomsForUser", 1).Return([]database.Room{
		{Id: 1, ExternalId: "abc", ProductName: "Desk Lamp", BuyerId: 1, SellerId: 2},
	}, nil).Once()

	app := newTestApp(t, mockRepo, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req = req.WithContext(WithUserId(req.Context(), 1))
	app.listRooms(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var rooms []types.Room
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms))
	assert.Len(t, rooms, 1, "expected one room")
	assert.Equal(t, "Desk Lamp", rooms[0].ProductName, "expected product name on room")
}
