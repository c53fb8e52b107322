package database

import "time"

type User struct {
	Id            int
	Username      string
	EmailAddress  string
	PasswordHash  string
	DisplayName   string
	AvatarURL     *string
	ChatAvatarURL *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Product struct {
	Id          int
	Name        string
	Description string
	PriceCents  int64
	ImageURL    *string
	Status      string
	SellerId    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Room struct {
	Id          int
	ExternalId  string
	ProductId   int
	ProductName string
	BuyerId     int
	SellerId    int
	CreatedAt   time.Time
}

type Message struct {
	Id        int
	RoomId    int
	SenderId  int
	Content   string
	ImageURL  *string
	CreatedAt time.Time
}

type Notification struct {
	Id          int
	RecipientId int
	Title       string
	Body        string
	Link        string
	IsRead      bool
	CreatedAt   time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateProfileParams struct {
	UserId        int
	DisplayName   string
	AvatarURL     *string
	ChatAvatarURL *string
}

type CreateProductParams struct {
	Name        string
	Description string
	PriceCents  int64
	ImageURL    *string
	SellerId    int
}

type CreateRoomParams struct {
	ExternalId string
	ProductId  int
	BuyerId    int
	SellerId   int
}

type CreateMessageParams struct {
	RoomId   int
	SenderId int
	Content  string
	ImageURL *string
}

type CreateNotificationParams struct {
	RecipientId int
	Title       string
	Body        string
	Link        string
}
