package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Database provides methods for storing and retrieving tracked
// submissions, comments, subreddit aggregates and time-series samples.
type Database struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// NewDatabase creates a new SQLite database connection
func NewDatabase(dbPath string, log *logrus.Logger) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:  db,
		log: log,
	}

	if err := database.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.db.Close()
}

// initTables creates the necessary tables if they don't exist
func (d *Database) initTables() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// note: in an ideal world, this would be a migration that we could just run once per environment (ie dev, staging, prod)
	query := `
	CREATE TABLE IF NOT EXISTS subreddits (
		name TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		num_comments INTEGER NOT NULL DEFAULT 0,
		average_submission_polarity REAL NOT NULL DEFAULT 0,
		average_submission_subjectivity REAL NOT NULL DEFAULT 0,
		average_upvote_ratio REAL NOT NULL DEFAULT 0,
		average_gilded_silver REAL NOT NULL DEFAULT 0,
		average_gilded_gold REAL NOT NULL DEFAULT 0,
		average_gilded_platinum REAL NOT NULL DEFAULT 0,
		average_is_op REAL NOT NULL DEFAULT 0,
		average_is_mod REAL NOT NULL DEFAULT 0,
		average_is_admin REAL NOT NULL DEFAULT 0,
		average_is_special REAL NOT NULL DEFAULT 0,
		average_comments_polarity REAL NOT NULL DEFAULT 0,
		average_comments_subjectivity REAL NOT NULL DEFAULT 0,
		tracked_submissions INTEGER NOT NULL DEFAULT 0,
		tracked_comments INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		subreddit TEXT NOT NULL REFERENCES subreddits(name),
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		rank INTEGER NOT NULL,
		rank_previous INTEGER NOT NULL,
		rank_peak INTEGER NOT NULL,
		score INTEGER NOT NULL,
		num_comments INTEGER NOT NULL,
		polarity REAL NOT NULL,
		subjectivity REAL NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		link_flair_text TEXT NOT NULL DEFAULT '',
		upvote_ratio REAL NOT NULL,
		stickied BOOLEAN NOT NULL,
		over_18 BOOLEAN NOT NULL,
		spoiler BOOLEAN NOT NULL,
		locked BOOLEAN NOT NULL,
		gilded_silver INTEGER NOT NULL DEFAULT 0,
		gilded_gold INTEGER NOT NULL DEFAULT 0,
		gilded_platinum INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_rank ON submissions(rank);
	CREATE INDEX IF NOT EXISTS idx_submissions_subreddit ON submissions(subreddit);

	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL REFERENCES submissions(id),
		score INTEGER NOT NULL,
		is_root BOOLEAN NOT NULL,
		is_op BOOLEAN,
		is_mod BOOLEAN,
		is_admin BOOLEAN,
		is_special BOOLEAN,
		gilded_silver INTEGER NOT NULL DEFAULT 0,
		gilded_gold INTEGER NOT NULL DEFAULT 0,
		gilded_platinum INTEGER NOT NULL DEFAULT 0,
		characters INTEGER NOT NULL,
		words INTEGER NOT NULL,
		sentences INTEGER NOT NULL,
		polarity REAL NOT NULL,
		subjectivity REAL NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comments_submission ON comments(submission_id);

	CREATE TABLE IF NOT EXISTS submission_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submission_scores ON submission_scores(submission_id, timestamp);

	CREATE TABLE IF NOT EXISTS submission_comment_counts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL,
		num_comments INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submission_comment_counts ON submission_comment_counts(submission_id, timestamp);

	CREATE TABLE IF NOT EXISTS submission_upvote_ratios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL,
		upvote_ratio REAL NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submission_upvote_ratios ON submission_upvote_ratios(submission_id, timestamp);

	CREATE TABLE IF NOT EXISTS subreddit_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subreddit TEXT NOT NULL,
		score INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subreddit_comment_counts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subreddit TEXT NOT NULL,
		num_comments INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS total_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		score INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS total_comment_counts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		num_comments INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frontpage_average_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		score REAL NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frontpage_average_comment_counts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		num_comments REAL NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
	`

	_, err := d.db.Exec(query)
	return err
}
