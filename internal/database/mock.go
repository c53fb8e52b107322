package database

import (
	"github.com/stretchr/testify/mock"
)

type MockUniMarketRepository struct {
	mock.Mock
}

func (m *MockUniMarketRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockUniMarketRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockUniMarketRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockUniMarketRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockUniMarketRepository) UpdateProfile(params UpdateProfileParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockUniMarketRepository) CreateProduct(params CreateProductParams) (Product, error) {
	args := m.Called(params)
	return args.Get(0).(Product), args.Error(1)
}
func (m *MockUniMarketRepository) GetProductById(productId int) (Product, error) {
	args := m.Called(productId)
	return args.Get(0).(Product), args.Error(1)
}
func (m *MockUniMarketRepository) ListActiveProducts(limit int) ([]Product, error) {
	args := m.Called(limit)
	return args.Get(0).([]Product), args.Error(1)
}
func (m *MockUniMarketRepository) ListProductsBySeller(sellerId int) ([]Product, error) {
	args := m.Called(sellerId)
	return args.Get(0).([]Product), args.Error(1)
}
func (m *MockUniMarketRepository) GetOrCreateRoom(params CreateRoomParams) (Room, bool, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Bool(1), args.Error(2)
}
func (m *MockUniMarketRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockUniMarketRepository) ListRoomsForUser(accountId int) ([]Room, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockUniMarketRepository) DeleteRoom(roomId int) error {
	args := m.Called(roomId)
	return args.Error(0)
}
func (m *MockUniMarketRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockUniMarketRepository) GetMessagesSince(roomId, lastId, limit int) ([]Message, error) {
	args := m.Called(roomId, lastId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockUniMarketRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	args := m.Called(params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockUniMarketRepository) ListNotifications(recipientId int) ([]Notification, error) {
	args := m.Called(recipientId)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockUniMarketRepository) MarkNotificationsRead(recipientId int) error {
	args := m.Called(recipientId)
	return args.Error(0)
}
func (m *MockUniMarketRepository) CountUnreadNotifications(recipientId int) (int, error) {
	args := m.Called(recipientId)
	return args.Int(0), args.Error(1)
}
