package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"frontwatch/models"
)

// AddSubmissionSamples appends one observation to each of the three
// per-submission series. One row lands per tick while the submission is
// windowed, whether or not the values changed.
func (d *Database) AddSubmissionSamples(id string, score, numComments int, upvoteRatio float64, ts time.Time) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	ts = ts.UTC()

	if _, err := d.db.Exec(
		`INSERT INTO submission_scores (submission_id, score, timestamp) VALUES (?, ?, ?)`,
		id, score, ts,
	); err != nil {
		return fmt.Errorf("failed to append submission score sample: %w", err)
	}

	if _, err := d.db.Exec(
		`INSERT INTO submission_comment_counts (submission_id, num_comments, timestamp) VALUES (?, ?, ?)`,
		id, numComments, ts,
	); err != nil {
		return fmt.Errorf("failed to append submission comment sample: %w", err)
	}

	if _, err := d.db.Exec(
		`INSERT INTO submission_upvote_ratios (submission_id, upvote_ratio, timestamp) VALUES (?, ?, ?)`,
		id, upvoteRatio, ts,
	); err != nil {
		return fmt.Errorf("failed to append submission upvote ratio sample: %w", err)
	}

	return nil
}

// SubmissionScoreSamples returns a submission's score series in
// timestamp order.
func (d *Database) SubmissionScoreSamples(id string) ([]models.IntSample, error) {
	return d.intSamples(
		`SELECT score, timestamp FROM submission_scores WHERE submission_id = ? ORDER BY timestamp ASC`, id)
}

// SubmissionCommentSamples returns a submission's comment-count series
// in timestamp order.
func (d *Database) SubmissionCommentSamples(id string) ([]models.IntSample, error) {
	return d.intSamples(
		`SELECT num_comments, timestamp FROM submission_comment_counts WHERE submission_id = ? ORDER BY timestamp ASC`, id)
}

// SubmissionRatioSamples returns a submission's upvote-ratio series in
// timestamp order.
func (d *Database) SubmissionRatioSamples(id string) ([]models.FloatSample, error) {
	return d.floatSamples(
		`SELECT upvote_ratio, timestamp FROM submission_upvote_ratios WHERE submission_id = ? ORDER BY timestamp ASC`, id)
}

// AddSubredditSamples appends one observation to each of the two
// per-subreddit series. Called once per subreddit per tick that saw one
// of its submissions exit the window.
func (d *Database) AddSubredditSamples(subreddit string, score, numComments int, ts time.Time) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	ts = ts.UTC()

	if _, err := d.db.Exec(
		`INSERT INTO subreddit_scores (subreddit, score, timestamp) VALUES (?, ?, ?)`,
		subreddit, score, ts,
	); err != nil {
		return fmt.Errorf("failed to append subreddit score sample: %w", err)
	}

	if _, err := d.db.Exec(
		`INSERT INTO subreddit_comment_counts (subreddit, num_comments, timestamp) VALUES (?, ?, ?)`,
		subreddit, numComments, ts,
	); err != nil {
		return fmt.Errorf("failed to append subreddit comment sample: %w", err)
	}

	return nil
}

// SubredditScoreSamples returns a subreddit's cumulative score series in
// timestamp order.
func (d *Database) SubredditScoreSamples(subreddit string) ([]models.IntSample, error) {
	return d.intSamples(
		`SELECT score, timestamp FROM subreddit_scores WHERE subreddit = ? ORDER BY timestamp ASC`, subreddit)
}

// LatestTotals returns the most recent global cumulative score and
// comment-count samples, or zeros when none have been recorded yet.
func (d *Database) LatestTotals() (int, int, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var score, numComments int

	err := d.db.QueryRow(`SELECT score FROM total_scores ORDER BY timestamp DESC, id DESC LIMIT 1`).Scan(&score)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("failed to read latest total score: %w", err)
	}

	err = d.db.QueryRow(`SELECT num_comments FROM total_comment_counts ORDER BY timestamp DESC, id DESC LIMIT 1`).Scan(&numComments)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("failed to read latest total comment count: %w", err)
	}

	return score, numComments, nil
}

// AddTotalSamples appends global cumulative score and comment-count
// observations.
func (d *Database) AddTotalSamples(score, numComments int, ts time.Time) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	ts = ts.UTC()

	if _, err := d.db.Exec(
		`INSERT INTO total_scores (score, timestamp) VALUES (?, ?)`, score, ts,
	); err != nil {
		return fmt.Errorf("failed to append total score sample: %w", err)
	}

	if _, err := d.db.Exec(
		`INSERT INTO total_comment_counts (num_comments, timestamp) VALUES (?, ?)`, numComments, ts,
	); err != nil {
		return fmt.Errorf("failed to append total comment sample: %w", err)
	}

	return nil
}

// AddFrontpageAverageSamples appends the per-tick window averages.
func (d *Database) AddFrontpageAverageSamples(avgScore, avgComments float64, ts time.Time) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	ts = ts.UTC()

	if _, err := d.db.Exec(
		`INSERT INTO frontpage_average_scores (score, timestamp) VALUES (?, ?)`, avgScore, ts,
	); err != nil {
		return fmt.Errorf("failed to append frontpage average score: %w", err)
	}

	if _, err := d.db.Exec(
		`INSERT INTO frontpage_average_comment_counts (num_comments, timestamp) VALUES (?, ?)`, avgComments, ts,
	); err != nil {
		return fmt.Errorf("failed to append frontpage average comment count: %w", err)
	}

	return nil
}

// FrontpageAverageScoreSamples returns the per-tick window average
// score series in timestamp order.
func (d *Database) FrontpageAverageScoreSamples() ([]models.FloatSample, error) {
	return d.floatSamples(`SELECT score, timestamp FROM frontpage_average_scores ORDER BY timestamp ASC`)
}

// FrontpageAverageCommentSamples returns the per-tick window average
// comment-count series in timestamp order.
func (d *Database) FrontpageAverageCommentSamples() ([]models.FloatSample, error) {
	return d.floatSamples(`SELECT num_comments, timestamp FROM frontpage_average_comment_counts ORDER BY timestamp ASC`)
}

func (d *Database) floatSamples(query string, args ...interface{}) ([]models.FloatSample, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]models.FloatSample, 0)
	for rows.Next() {
		var s models.FloatSample
		if err := rows.Scan(&s.Value, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

func (d *Database) intSamples(query string, args ...interface{}) ([]models.IntSample, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]models.IntSample, 0)
	for rows.Next() {
		var s models.IntSample
		if err := rows.Scan(&s.Value, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}
