package db

import (
	"database/sql"
	"fmt"
	"log"

	"MuseFM/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
func InitDB() error {
	if err := createTracksTable(); err != nil {
		return err
	}
	log.Println("Database initialization completed.")
	return nil
}

func createTracksTable() error {
	// The primary key is the path-derived track ID, so a rescan of an
	// unchanged library touches existing rows instead of growing the table.
	query := `
	CREATE TABLE IF NOT EXISTS music_tracks (
		id VARCHAR(36) PRIMARY KEY,
		filename VARCHAR(767) NOT NULL,
		title VARCHAR(255) NOT NULL,
		title_pinyin VARCHAR(512),
		title_first_letter CHAR(1),
		artist VARCHAR(255),
		artist_pinyin VARCHAR(512),
		artist_first_letter CHAR(1),
		album VARCHAR(255),
		duration DOUBLE NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		format VARCHAR(8),
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_title_letter (title_first_letter),
		INDEX idx_artist (artist),
		INDEX idx_artist_letter (artist_first_letter)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create music_tracks table: %w", err)
	}
	log.Println("music_tracks table initialized successfully (or already exists).")
	return nil
}
