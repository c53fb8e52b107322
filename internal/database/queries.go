package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 100
)

func (db *PgUniMarketRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgUniMarketRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, display_name, avatar_url, chat_avatar_url, created_at, updated_at "+
			"FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	return scanUser(row)
}

func (db *PgUniMarketRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, display_name, avatar_url, chat_avatar_url, created_at, updated_at "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	return scanUser(row)
}

func (db *PgUniMarketRepository) UpdateProfile(params UpdateProfileParams) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE accounts SET display_name = $2, avatar_url = $3, chat_avatar_url = $4, updated_at = $5 "+
			"WHERE id = $1 "+
			"RETURNING id, username, email, password_hash, display_name, avatar_url, chat_avatar_url, created_at, updated_at",
		params.UserId,
		params.DisplayName,
		params.AvatarURL,
		params.ChatAvatarURL,
		time.Now().UTC(),
	)

	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u           User
		displayName sql.NullString
	)
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&displayName,
		&u.AvatarURL,
		&u.ChatAvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	u.DisplayName = displayName.String

	return u, err
}

func (db *PgUniMarketRepository) CreateProduct(params CreateProductParams) (Product, error) {
	res := db.conn.QueryRow(
		"INSERT INTO products (name, description, price_cents, image_url, status, seller_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, 'active', $5, $6, $6) "+
			"RETURNING id, name, description, price_cents, image_url, status, seller_id, created_at, updated_at",
		params.Name,
		params.Description,
		params.PriceCents,
		params.ImageURL,
		params.SellerId,
		time.Now().UTC(),
	)

	var p Product
	err := res.Scan(
		&p.Id,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.ImageURL,
		&p.Status,
		&p.SellerId,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}

func (db *PgUniMarketRepository) GetProductById(productId int) (Product, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, description, price_cents, image_url, status, seller_id, created_at, updated_at "+
			"FROM products WHERE id = $1 LIMIT 1",
		productId,
	)

	var p Product
	err := row.Scan(
		&p.Id,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.ImageURL,
		&p.Status,
		&p.SellerId,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}

func (db *PgUniMarketRepository) ListActiveProducts(limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(
		"SELECT id, name, description, price_cents, image_url, status, seller_id, created_at, updated_at "+
			"FROM products WHERE status = 'active' ORDER BY created_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (db *PgUniMarketRepository) ListProductsBySeller(sellerId int) ([]Product, error) {
	rows, err := db.conn.Query(
		"SELECT id, name, description, price_cents, image_url, status, seller_id, created_at, updated_at "+
			"FROM products WHERE seller_id = $1 ORDER BY created_at DESC",
		sellerId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func scanProducts(rows *sql.Rows) ([]Product, error) {
	var products = make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.Id,
			&p.Name,
			&p.Description,
			&p.PriceCents,
			&p.ImageURL,
			&p.Status,
			&p.SellerId,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		products = append(products, p)
	}

	return products, rows.Err()
}

// GetOrCreateRoom resolves the room for a (product, buyer) pair, inserting it
// on first contact. The rooms table carries a unique constraint on
// (product_id, buyer_id); a concurrent insert losing the race falls through
// to fetching the winner's row, so both callers observe the same room.
func (db *PgUniMarketRepository) GetOrCreateRoom(params CreateRoomParams) (Room, bool, error) {
	res := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, product_id, buyer_id, seller_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id",
		params.ExternalId,
		params.ProductId,
		params.BuyerId,
		params.SellerId,
		time.Now().UTC(),
	)

	var roomId int
	err := res.Scan(&roomId)
	if err == nil {
		room, err := db.getRoomById(roomId)
		return room, true, err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		room, err := db.getRoomByProductAndBuyer(params.ProductId, params.BuyerId)
		return room, false, err
	}

	return Room{}, false, err
}

const roomSelect = "SELECT r.id, r.external_id, r.product_id, p.name, r.buyer_id, r.seller_id, r.created_at " +
	"FROM rooms r JOIN products p ON p.id = r.product_id "

func (db *PgUniMarketRepository) getRoomById(roomId int) (Room, error) {
	row := db.conn.QueryRow(roomSelect+"WHERE r.id = $1 LIMIT 1", roomId)
	return scanRoom(row)
}

func (db *PgUniMarketRepository) getRoomByProductAndBuyer(productId, buyerId int) (Room, error) {
	row := db.conn.QueryRow(roomSelect+"WHERE r.product_id = $1 AND r.buyer_id = $2 LIMIT 1", productId, buyerId)
	return scanRoom(row)
}

func (db *PgUniMarketRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(roomSelect+"WHERE r.external_id = $1 LIMIT 1", externalId)
	return scanRoom(row)
}

func scanRoom(row *sql.Row) (Room, error) {
	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.ProductId,
		&room.ProductName,
		&room.BuyerId,
		&room.SellerId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgUniMarketRepository) ListRoomsForUser(accountId int) ([]Room, error) {
	rows, err := db.conn.Query(
		roomSelect+"WHERE r.buyer_id = $1 OR r.seller_id = $1 ORDER BY r.created_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms = make([]Room, 0)
	for rows.Next() {
		var room Room
		if err := rows.Scan(
			&room.Id,
			&room.ExternalId,
			&room.ProductId,
			&room.ProductName,
			&room.BuyerId,
			&room.SellerId,
			&room.CreatedAt,
		); err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// DeleteRoom removes a room; its messages go with it via ON DELETE CASCADE.
func (db *PgUniMarketRepository) DeleteRoom(roomId int) error {
	_, err := db.conn.Exec("DELETE FROM rooms WHERE id = $1", roomId)
	return err
}

func (db *PgUniMarketRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (room_id, sender_id, content, image_url, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, room_id, sender_id, content, image_url, created_at",
		params.RoomId,
		params.SenderId,
		params.Content,
		params.ImageURL,
		time.Now().UTC(),
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.SenderId,
		&msg.Content,
		&msg.ImageURL,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgUniMarketRepository) GetMessagesSince(roomId, lastId, limit int) ([]Message, error) {
	if limit <= 0 || limit > maxMessageLimit {
		limit = defaultMessageLimit
	}

	rows, err := db.conn.Query(
		"SELECT id, room_id, sender_id, content, image_url, created_at FROM messages "+
			"WHERE room_id = $1 AND id > $2 ORDER BY id ASC LIMIT $3",
		roomId,
		lastId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.Id,
			&msg.RoomId,
			&msg.SenderId,
			&msg.Content,
			&msg.ImageURL,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgUniMarketRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	res := db.conn.QueryRow(
		"INSERT INTO notifications (recipient_id, title, body, link, is_read, created_at) "+
			"VALUES ($1, $2, $3, $4, false, $5) RETURNING id, recipient_id, title, body, link, is_read, created_at",
		params.RecipientId,
		params.Title,
		params.Body,
		params.Link,
		time.Now().UTC(),
	)

	var n Notification
	err := res.Scan(
		&n.Id,
		&n.RecipientId,
		&n.Title,
		&n.Body,
		&n.Link,
		&n.IsRead,
		&n.CreatedAt,
	)

	return n, err
}

func (db *PgUniMarketRepository) ListNotifications(recipientId int) ([]Notification, error) {
	rows, err := db.conn.Query(
		"SELECT id, recipient_id, title, body, link, is_read, created_at FROM notifications "+
			"WHERE recipient_id = $1 ORDER BY created_at DESC, id DESC",
		recipientId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications = make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.Id,
			&n.RecipientId,
			&n.Title,
			&n.Body,
			&n.Link,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (db *PgUniMarketRepository) MarkNotificationsRead(recipientId int) error {
	_, err := db.conn.Exec(
		"UPDATE notifications SET is_read = true WHERE recipient_id = $1 AND is_read = false",
		recipientId,
	)

	return err
}

func (db *PgUniMarketRepository) CountUnreadNotifications(recipientId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = false",
		recipientId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}
