package db

import (
	"database/sql"
	"errors"
	"fmt"

	"frontwatch/models"
)

const subredditColumns = `name, title, description, score, num_comments,
	average_submission_polarity, average_submission_subjectivity, average_upvote_ratio,
	average_gilded_silver, average_gilded_gold, average_gilded_platinum,
	average_is_op, average_is_mod, average_is_admin, average_is_special,
	average_comments_polarity, average_comments_subjectivity,
	tracked_submissions, tracked_comments`

// GetSubreddit returns the subreddit with the given name, or ErrNotFound.
func (d *Database) GetSubreddit(name string) (*models.Subreddit, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM subreddits WHERE name = ?`, subredditColumns)
	return scanSubreddit(d.db.QueryRow(query, name))
}

// CreateSubreddit inserts a new subreddit row. A unique-key conflict is
// reported as an error so callers can fall back to a read (first writer
// wins).
func (d *Database) CreateSubreddit(subreddit *models.Subreddit) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	INSERT INTO subreddits (name, title, description)
	VALUES (?, ?, ?)
	`

	_, err := d.db.Exec(query, subreddit.Name, subreddit.Title, subreddit.Description)
	if err != nil {
		return fmt.Errorf("failed to create subreddit %s: %w", subreddit.Name, err)
	}

	return nil
}

// SaveSubreddit writes all mutable aggregate fields of a subreddit.
func (d *Database) SaveSubreddit(subreddit *models.Subreddit) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	UPDATE subreddits SET
		title = ?, description = ?, score = ?, num_comments = ?,
		average_submission_polarity = ?, average_submission_subjectivity = ?, average_upvote_ratio = ?,
		average_gilded_silver = ?, average_gilded_gold = ?, average_gilded_platinum = ?,
		average_is_op = ?, average_is_mod = ?, average_is_admin = ?, average_is_special = ?,
		average_comments_polarity = ?, average_comments_subjectivity = ?,
		tracked_submissions = ?, tracked_comments = ?
	WHERE name = ?
	`

	_, err := d.db.Exec(
		query,
		subreddit.Title, subreddit.Description, subreddit.Score, subreddit.NumComments,
		subreddit.AverageSubmissionPolarity, subreddit.AverageSubmissionSubjectivity, subreddit.AverageUpvoteRatio,
		subreddit.AverageGildedSilver, subreddit.AverageGildedGold, subreddit.AverageGildedPlatinum,
		subreddit.AverageIsOP, subreddit.AverageIsMod, subreddit.AverageIsAdmin, subreddit.AverageIsSpecial,
		subreddit.AverageCommentsPolarity, subreddit.AverageCommentsSubjectivity,
		subreddit.TrackedSubmissions, subreddit.TrackedComments,
		subreddit.Name,
	)

	if err != nil {
		return fmt.Errorf("failed to save subreddit %s: %w", subreddit.Name, err)
	}

	return nil
}

func scanSubreddit(row *sql.Row) (*models.Subreddit, error) {
	var s models.Subreddit

	err := row.Scan(
		&s.Name, &s.Title, &s.Description, &s.Score, &s.NumComments,
		&s.AverageSubmissionPolarity, &s.AverageSubmissionSubjectivity, &s.AverageUpvoteRatio,
		&s.AverageGildedSilver, &s.AverageGildedGold, &s.AverageGildedPlatinum,
		&s.AverageIsOP, &s.AverageIsMod, &s.AverageIsAdmin, &s.AverageIsSpecial,
		&s.AverageCommentsPolarity, &s.AverageCommentsSubjectivity,
		&s.TrackedSubmissions, &s.TrackedComments,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subreddit: %w", err)
	}

	return &s, nil
}
