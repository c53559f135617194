package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"frontwatch/models"
)

const submissionColumns = `id, subreddit, title, author, rank, rank_previous, rank_peak,
	score, num_comments, polarity, subjectivity, domain, link_flair_text, upvote_ratio,
	stickied, over_18, spoiler, locked, gilded_silver, gilded_gold, gilded_platinum, created_at`

// GetSubmission returns the submission with the given id, or ErrNotFound.
func (d *Database) GetSubmission(id string) (*models.Submission, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = ?`, submissionColumns)

	var s models.Submission
	err := d.db.QueryRow(query, id).Scan(submissionFields(&s)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	return &s, nil
}

// SaveSubmission creates or replaces a submission row.
func (d *Database) SaveSubmission(submission *models.Submission) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	INSERT OR REPLACE INTO submissions (
		id, subreddit, title, author, rank, rank_previous, rank_peak,
		score, num_comments, polarity, subjectivity, domain, link_flair_text, upvote_ratio,
		stickied, over_18, spoiler, locked, gilded_silver, gilded_gold, gilded_platinum, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		submission.ID, submission.Subreddit, submission.Title, submission.Author,
		submission.Rank, submission.RankPrevious, submission.RankPeak,
		submission.Score, submission.NumComments, submission.Polarity, submission.Subjectivity,
		submission.Domain, submission.LinkFlairText, submission.UpvoteRatio,
		submission.Stickied, submission.Over18, submission.Spoiler, submission.Locked,
		submission.GildedSilver, submission.GildedGold, submission.GildedPlatinum,
		submission.CreatedAt.UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}

	return nil
}

// SetSubmissionRank updates only the rank of a submission. Used to mark
// window exits with models.RankNone.
func (d *Database) SetSubmissionRank(id string, rank int) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	_, err := d.db.Exec(`UPDATE submissions SET rank = ? WHERE id = ?`, rank, id)
	if err != nil {
		return fmt.Errorf("failed to set rank for submission %s: %w", id, err)
	}

	return nil
}

// WindowedSubmissions returns all submissions currently holding a
// positive rank, best rank first.
func (d *Database) WindowedSubmissions() ([]models.Submission, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE rank > 0 ORDER BY rank ASC`, submissionColumns)
	return d.querySubmissions(query)
}

// SubmissionsBySubreddit returns a subreddit's submissions ordered by
// peak rank, best first.
func (d *Database) SubmissionsBySubreddit(subreddit string) ([]models.Submission, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := fmt.Sprintf(`
	SELECT %s FROM submissions
	WHERE LOWER(subreddit) = LOWER(?)
	ORDER BY rank_peak ASC, score DESC`, submissionColumns)

	return d.querySubmissions(query, subreddit)
}

// SearchOptions narrows a title search.
type SearchOptions struct {
	Query      string
	Since      time.Time // zero value means no time filter
	Subreddits []string  // empty means all subreddits
	OrderBy    string    // "", "score" or "comments"; "" keeps relevance order
}

// SearchSubmissions returns submissions whose title contains the query,
// filtered and ordered per the options.
func (d *Database) SearchSubmissions(opts SearchOptions) ([]models.Submission, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var conditions []string
	var args []interface{}

	conditions = append(conditions, "title LIKE ?")
	args = append(args, "%"+opts.Query+"%")

	if !opts.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	if len(opts.Subreddits) > 0 {
		placeholders := make([]string, len(opts.Subreddits))
		for i, sr := range opts.Subreddits {
			placeholders[i] = "LOWER(?)"
			args = append(args, sr)
		}
		conditions = append(conditions, fmt.Sprintf("LOWER(subreddit) IN (%s)", strings.Join(placeholders, ", ")))
	}

	order := "id ASC"
	switch opts.OrderBy {
	case "score":
		order = "score DESC"
	case "comments":
		order = "num_comments DESC"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM submissions WHERE %s ORDER BY %s`,
		submissionColumns, strings.Join(conditions, " AND "), order,
	)

	return d.querySubmissions(query, args...)
}

func (d *Database) querySubmissions(query string, args ...interface{}) ([]models.Submission, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]models.Submission, 0)
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(submissionFields(&s)...); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return submissions, nil
}

// submissionFields returns scan destinations in submissionColumns order.
func submissionFields(s *models.Submission) []interface{} {
	return []interface{}{
		&s.ID, &s.Subreddit, &s.Title, &s.Author, &s.Rank, &s.RankPrevious, &s.RankPeak,
		&s.Score, &s.NumComments, &s.Polarity, &s.Subjectivity, &s.Domain, &s.LinkFlairText, &s.UpvoteRatio,
		&s.Stickied, &s.Over18, &s.Spoiler, &s.Locked,
		&s.GildedSilver, &s.GildedGold, &s.GildedPlatinum, &s.CreatedAt,
	}
}
