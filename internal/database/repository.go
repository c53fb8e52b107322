package database

type UniMarketRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	UpdateProfile(params UpdateProfileParams) (User, error)
	CreateProduct(params CreateProductParams) (Product, error)
	GetProductById(productId int) (Product, error)
	ListActiveProducts(limit int) ([]Product, error)
	ListProductsBySeller(sellerId int) ([]Product, error)
	GetOrCreateRoom(params CreateRoomParams) (Room, bool, error)
	GetRoomByExternalId(externalId string) (Room, error)
	ListRoomsForUser(accountId int) ([]Room, error)
	DeleteRoom(roomId int) error
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessagesSince(roomId, lastId, limit int) ([]Message, error)
	CreateNotification(params CreateNotificationParams) (Notification, error)
	ListNotifications(recipientId int) ([]Notification, error)
	MarkNotificationsRead(recipientId int) error
	CountUnreadNotifications(recipientId int) (int, error)
}
