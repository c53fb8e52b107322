package database

import (
	"database/sql"
)

type PgUniMarketRepository struct {
	conn *sql.DB
}

func NewPgUniMarketRepository(dsn string) (*PgUniMarketRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgUniMarketRepository{conn: db}, nil
}

func (db *PgUniMarketRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgUniMarketRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
