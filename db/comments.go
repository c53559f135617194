package db

import (
	"database/sql"
	"errors"
	"fmt"

	"frontwatch/models"
)

const commentColumns = `id, submission_id, score, is_root, is_op, is_mod, is_admin, is_special,
	gilded_silver, gilded_gold, gilded_platinum, characters, words, sentences,
	polarity, subjectivity, created_at`

// GetComment returns the comment with the given id, or ErrNotFound.
func (d *Database) GetComment(id string) (*models.Comment, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM comments WHERE id = ?`, commentColumns)

	var c models.Comment
	var isOP, isMod, isAdmin, isSpecial sql.NullBool

	err := d.db.QueryRow(query, id).Scan(
		&c.ID, &c.SubmissionID, &c.Score, &c.IsRoot, &isOP, &isMod, &isAdmin, &isSpecial,
		&c.GildedSilver, &c.GildedGold, &c.GildedPlatinum, &c.Characters, &c.Words, &c.Sentences,
		&c.Polarity, &c.Subjectivity, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}

	c.IsOP = nullBoolPtr(isOP)
	c.IsMod = nullBoolPtr(isMod)
	c.IsAdmin = nullBoolPtr(isAdmin)
	c.IsSpecial = nullBoolPtr(isSpecial)

	return &c, nil
}

// SaveComment inserts a new comment row.
func (d *Database) SaveComment(comment *models.Comment) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	INSERT INTO comments (
		id, submission_id, score, is_root, is_op, is_mod, is_admin, is_special,
		gilded_silver, gilded_gold, gilded_platinum, characters, words, sentences,
		polarity, subjectivity, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		comment.ID, comment.SubmissionID, comment.Score, comment.IsRoot,
		ptrNullBool(comment.IsOP), ptrNullBool(comment.IsMod),
		ptrNullBool(comment.IsAdmin), ptrNullBool(comment.IsSpecial),
		comment.GildedSilver, comment.GildedGold, comment.GildedPlatinum,
		comment.Characters, comment.Words, comment.Sentences,
		comment.Polarity, comment.Subjectivity, comment.CreatedAt.UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to save comment: %w", err)
	}

	return nil
}

// UpdateCommentVotes refreshes only the mutable fields of an existing
// comment: score and gilding counts. Everything else is a snapshot of
// creation-time state and stays untouched.
func (d *Database) UpdateCommentVotes(id string, score int, gildings models.Gildings) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := `
	UPDATE comments SET score = ?, gilded_silver = ?, gilded_gold = ?, gilded_platinum = ?
	WHERE id = ?
	`

	_, err := d.db.Exec(query, score, gildings.Silver, gildings.Gold, gildings.Platinum, id)
	if err != nil {
		return fmt.Errorf("failed to update comment %s: %w", id, err)
	}

	return nil
}

// CommentsBySubmission returns all comments under a submission.
func (d *Database) CommentsBySubmission(submissionID string) ([]models.Comment, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM comments WHERE submission_id = ? ORDER BY created_at ASC`, commentColumns)

	rows, err := d.db.Query(query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		var isOP, isMod, isAdmin, isSpecial sql.NullBool

		err := rows.Scan(
			&c.ID, &c.SubmissionID, &c.Score, &c.IsRoot, &isOP, &isMod, &isAdmin, &isSpecial,
			&c.GildedSilver, &c.GildedGold, &c.GildedPlatinum, &c.Characters, &c.Words, &c.Sentences,
			&c.Polarity, &c.Subjectivity, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}

		c.IsOP = nullBoolPtr(isOP)
		c.IsMod = nullBoolPtr(isMod)
		c.IsAdmin = nullBoolPtr(isAdmin)
		c.IsSpecial = nullBoolPtr(isSpecial)
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return comments, nil
}

func nullBoolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func ptrNullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
