package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"birdwatch/internal/models"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// OpenDB opens (or creates) the SQLite database at path and ensures the
// schema exists.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time; the store serializes writes
	// anyway, so a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	wrapped := &DB{db}
	if err := wrapped.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[DB] SQLite database ready at %s", path)
	return wrapped, nil
}

func (db *DB) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tweets (
			tweet_id    TEXT PRIMARY KEY,
			content     TEXT NOT NULL,
			author      TEXT,
			observed_at DATETIME NOT NULL,
			score       REAL NOT NULL,
			status      TEXT NOT NULL,
			topics      TEXT,
			tokens      TEXT,
			likes       INTEGER DEFAULT 0,
			retweets    INTEGER DEFAULT 0,
			replies     INTEGER DEFAULT 0,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS replies (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			original_tweet_id TEXT NOT NULL,
			reply_content     TEXT NOT NULL,
			posted_id         TEXT,
			posted_at         DATETIME NOT NULL,
			created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (original_tweet_id) REFERENCES tweets (tweet_id)
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			content       TEXT NOT NULL,
			source_tweets TEXT,
			posted_id     TEXT,
			posted_at     DATETIME NOT NULL,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tweets_status ON tweets (status)`,
		`CREATE INDEX IF NOT EXISTS idx_replies_tweet ON replies (original_tweet_id)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// SaveTweet inserts an item, ignoring duplicates by tweet id.
func (db *DB) SaveTweet(item models.Item) error {
	topics, _ := json.Marshal(item.Topics)
	tokens, _ := json.Marshal(item.Tokens)

	_, err := db.Exec(`
		INSERT OR IGNORE INTO tweets
		(tweet_id, content, author, observed_at, score, status, topics, tokens, likes, retweets, replies)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Text, item.Author, item.ObservedAt.UTC().Format(time.RFC3339),
		item.Score, string(item.Status), string(topics), string(tokens),
		item.Metrics.Likes, item.Metrics.Retweets, item.Metrics.Replies,
	)
	return err
}

// UpdateTweetStatus updates the lifecycle status of a stored tweet.
func (db *DB) UpdateTweetStatus(id string, status models.Status) error {
	_, err := db.Exec(`UPDATE tweets SET status = ? WHERE tweet_id = ?`, string(status), id)
	return err
}

// SaveReply stores a posted reply.
func (db *DB) SaveReply(rec models.EngagementRecord) error {
	_, err := db.Exec(`
		INSERT INTO replies (original_tweet_id, reply_content, posted_id, posted_at)
		VALUES (?, ?, ?, ?)`,
		rec.ItemID, rec.GeneratedText, rec.PostedID, rec.PostedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// SavePost stores a posted summary with the ids of its source tweets.
func (db *DB) SavePost(rec models.EngagementRecord, sourceIDs []string) error {
	sources, _ := json.Marshal(sourceIDs)
	_, err := db.Exec(`
		INSERT INTO posts (content, source_tweets, posted_id, posted_at)
		VALUES (?, ?, ?, ?)`,
		rec.GeneratedText, string(sources), rec.PostedID, rec.PostedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteRejectedBefore removes rejected tweets observed before cutoff and
// returns how many rows went away.
func (db *DB) DeleteRejectedBefore(cutoff time.Time) (int, error) {
	result, err := db.Exec(`DELETE FROM tweets WHERE status = ? AND observed_at < ?`,
		string(models.StatusRejected), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	deleted, _ := result.RowsAffected()
	return int(deleted), nil
}

// LoadTweets returns every stored item, oldest first.
func (db *DB) LoadTweets() ([]models.Item, error) {
	rows, err := db.Query(`
		SELECT tweet_id, content, author, observed_at, score, status, topics, tokens, likes, retweets, replies
		FROM tweets ORDER BY observed_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		var observedAt, topics, tokens string
		if err := rows.Scan(&item.ID, &item.Text, &item.Author, &observedAt, &item.Score,
			&item.Status, &topics, &tokens,
			&item.Metrics.Likes, &item.Metrics.Retweets, &item.Metrics.Replies); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339, observedAt); err == nil {
			item.ObservedAt = ts
		}
		if topics != "" {
			_ = json.Unmarshal([]byte(topics), &item.Topics)
		}
		if tokens != "" {
			_ = json.Unmarshal([]byte(tokens), &item.Tokens)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
