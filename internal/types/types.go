package types

import (
	"time"
)

type User struct {
	Id            int       `json:"id"`
	Username      string    `json:"username"`
	EmailAddress  string    `json:"email_address,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	ChatAvatarURL *string   `json:"chat_avatar_url,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Name resolves the name shown next to a user's messages: the profile
// display name when one is set, otherwise the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Avatar resolves a user's avatar through the fallback chain:
// primary profile avatar, then the chat profile avatar, then nil.
func (u User) Avatar() *string {
	if u.AvatarURL != nil && *u.AvatarURL != "" {
		return u.AvatarURL
	}
	if u.ChatAvatarURL != nil && *u.ChatAvatarURL != "" {
		return u.ChatAvatarURL
	}
	return nil
}

type Product struct {
	Id          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	ImageURL    *string   `json:"image_url"`
	Status      string    `json:"status"`
	SellerId    int       `json:"seller_id"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id          int       `json:"id"`
	ExternalId  string    `json:"external_id"`
	ProductId   int       `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	BuyerId     int       `json:"buyer_id"`
	SellerId    int       `json:"seller_id"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// IsParticipant reports whether the user may read or write this room.
func (r Room) IsParticipant(userId int) bool {
	return userId == r.BuyerId || userId == r.SellerId
}

// Counterparty returns the other participant of the room.
func (r Room) Counterparty(userId int) int {
	if userId == r.BuyerId {
		return r.SellerId
	}
	return r.BuyerId
}

type Message struct {
	Id        int       `json:"id"`
	RoomId    int       `json:"room_id"`
	SenderId  int       `json:"sender_id"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"image_url"`
	Timestamp time.Time `json:"timestamp"`
}

type Notification struct {
	Id          int       `json:"id"`
	RecipientId int       `json:"recipient_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Link        string    `json:"link,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
