package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"frontwatch/db"
	"frontwatch/models"
	"frontwatch/sentiment"
)

// commentRefetchThreshold is the comment count past which the listing's
// depth-0 tree starts hiding comments behind collapsed placeholders, so
// an oldest-first re-fetch is appended to avoid silently dropping them.
const commentRefetchThreshold = 500

// ContentSource is the upstream API surface the tick consumes. It is an
// injected dependency so the pipeline can be exercised without network
// access.
type ContentSource interface {
	// TopSubmissions returns the current top submissions in rank order.
	TopSubmissions(ctx context.Context, limit int) ([]models.RawSubmission, error)
	// SubmissionComments returns a submission's flattened comment tree
	// with collapsed placeholders treated as absent.
	SubmissionComments(ctx context.Context, id string) ([]models.RawComment, error)
	// SubmissionCommentsOldest re-fetches comments sorted oldest first.
	SubmissionCommentsOldest(ctx context.Context, id string) ([]models.RawComment, error)
	// SubredditAbout returns display metadata for a subreddit.
	SubredditAbout(ctx context.Context, name string) (models.SubredditAbout, error)
}

// Materializer builds and refreshes submission and comment records from
// raw fetched data, attaching sentiment scores and author-role
// classification.
type Materializer struct {
	database *db.Database
	source   ContentSource
	scorer   sentiment.Scorer
	log      *logrus.Logger

	// one mutex per subreddit: the read-modify-write of tracked_*
	// counters and running averages must not interleave across
	// concurrently processed submissions of the same subreddit
	subredditLocks sync.Map
}

// NewMaterializer creates a new materializer.
func NewMaterializer(database *db.Database, source ContentSource, scorer sentiment.Scorer, log *logrus.Logger) *Materializer {
	return &Materializer{
		database: database,
		source:   source,
		scorer:   scorer,
		log:      log,
	}
}

// subredditLock returns the mutex guarding one subreddit's counters.
func (m *Materializer) subredditLock(name string) *sync.Mutex {
	lock, _ := m.subredditLocks.LoadOrStore(name, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// UpsertSubmission creates or refreshes the record for one ranked
// submission and materializes its comment tree. All upstream reads
// happen before the first write, so a fetch failure skips the
// submission for this cycle without partial mutation.
func (m *Materializer) UpsertSubmission(ctx context.Context, raw models.RawSubmission, rank int) (*models.Submission, error) {
	comments, err := m.source.SubmissionComments(ctx, raw.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments for %s: %w", raw.ID, err)
	}

	if raw.NumComments > commentRefetchThreshold {
		// long threads hide comments behind collapsed placeholders;
		// re-fetch oldest-first and append the extra flattened comments
		older, err := m.source.SubmissionCommentsOldest(ctx, raw.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-fetch comments for %s: %w", raw.ID, err)
		}
		comments = append(comments, older...)
	}

	submission, err := m.database.GetSubmission(raw.ID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		submission, err = m.createSubmission(ctx, raw, rank)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		m.refreshSubmission(submission, raw, rank)
		if err := m.database.SaveSubmission(submission); err != nil {
			return nil, err
		}
	}

	for _, comment := range comments {
		if err := m.upsertComment(comment, submission); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"comment_id":    comment.ID,
				"submission_id": submission.ID,
			}).Error("Failed to materialize comment")
		}
	}

	return submission, nil
}

// createSubmission builds a fresh submission record, lazily creating
// its subreddit.
func (m *Materializer) createSubmission(ctx context.Context, raw models.RawSubmission, rank int) (*models.Submission, error) {
	if err := m.ensureSubreddit(ctx, raw.Subreddit); err != nil {
		return nil, err
	}

	score := m.scorer.Analyze(raw.Title)

	flair := ""
	if raw.LinkFlairText != nil {
		flair = *raw.LinkFlairText
	}

	submission := &models.Submission{
		ID:            raw.ID,
		Subreddit:     raw.Subreddit,
		Title:         raw.Title,
		Author:        raw.Author,
		Rank:          rank,
		RankPrevious:  rank,
		RankPeak:      rank,
		Score:         raw.Score,
		NumComments:   raw.NumComments,
		Polarity:      score.Polarity,
		Subjectivity:  score.Subjectivity,
		Domain:        raw.Domain,
		LinkFlairText: flair,
		UpvoteRatio:   raw.UpvoteRatio,
		Stickied:      raw.Stickied,
		Over18:        raw.Over18,
		Spoiler:       raw.Spoiler,
		Locked:        raw.Locked,
		GildedSilver:  raw.Gildings.Silver,
		GildedGold:    raw.Gildings.Gold,
		GildedPlatinum: raw.Gildings.Platinum,
		CreatedAt:     raw.CreatedAt(),
	}

	if err := m.database.SaveSubmission(submission); err != nil {
		return nil, err
	}

	return submission, nil
}

// refreshSubmission applies a new tick's raw data to an existing record.
// Title sentiment and creation-time fields are immutable snapshots.
func (m *Materializer) refreshSubmission(submission *models.Submission, raw models.RawSubmission, rank int) {
	submission.RankPrevious = submission.Rank
	submission.Rank = rank
	if rank < submission.RankPeak {
		submission.RankPeak = rank
	}

	submission.Score = raw.Score
	submission.NumComments = raw.NumComments
	if raw.LinkFlairText != nil {
		submission.LinkFlairText = *raw.LinkFlairText
	}
	submission.UpvoteRatio = raw.UpvoteRatio
	submission.Stickied = raw.Stickied
	submission.Over18 = raw.Over18
	submission.Spoiler = raw.Spoiler
	submission.Locked = raw.Locked
	submission.GildedSilver = raw.Gildings.Silver
	submission.GildedGold = raw.Gildings.Gold
	submission.GildedPlatinum = raw.Gildings.Platinum
}

// ensureSubreddit creates the subreddit row on first sight. First
// writer wins: a create that loses a race falls back to the read.
func (m *Materializer) ensureSubreddit(ctx context.Context, name string) error {
	lock := m.subredditLock(name)
	lock.Lock()
	defer lock.Unlock()

	_, err := m.database.GetSubreddit(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	about, err := m.source.SubredditAbout(ctx, name)
	if err != nil {
		// metadata is cosmetic; the row still has to exist
		m.log.WithError(err).WithField("subreddit", name).Warn("Failed to fetch subreddit metadata")
		about = models.SubredditAbout{}
	}

	subreddit := &models.Subreddit{
		Name:        name,
		Title:       about.Title,
		Description: about.Description,
	}

	if err := m.database.CreateSubreddit(subreddit); err != nil {
		// unique-key conflict with a concurrent creator; first writer wins
		if _, getErr := m.database.GetSubreddit(name); getErr == nil {
			return nil
		}
		return err
	}

	return nil
}

// upsertComment creates a comment record once per id. Re-creation
// attempts only refresh score and gilding; sentiment and role are
// snapshots of creation-time state.
func (m *Materializer) upsertComment(raw models.RawComment, submission *models.Submission) error {
	if raw.Body == "" {
		// content no longer retrievable; not an error
		return nil
	}

	_, err := m.database.GetComment(raw.ID)
	if err == nil {
		return m.database.UpdateCommentVotes(raw.ID, raw.Score, raw.Gildings)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	comment := m.classifyComment(raw, submission)

	score := m.scorer.Analyze(raw.Body)
	comment.Polarity = score.Polarity
	comment.Subjectivity = score.Subjectivity
	comment.Characters = sentiment.CountLetters(raw.Body)
	comment.Words = score.Words
	comment.Sentences = score.Sentences

	if err := m.database.SaveComment(comment); err != nil {
		return err
	}

	return m.foldCommentSentiment(submission.Subreddit, score)
}

// classifyComment builds the comment record with its author-role
// classification. A deleted author leaves all four role flags nil:
// unknown, not false.
func (m *Materializer) classifyComment(raw models.RawComment, submission *models.Submission) *models.Comment {
	comment := &models.Comment{
		ID:             raw.ID,
		SubmissionID:   submission.ID,
		Score:          raw.Score,
		IsRoot:         raw.IsRoot,
		GildedSilver:   raw.Gildings.Silver,
		GildedGold:     raw.Gildings.Gold,
		GildedPlatinum: raw.Gildings.Platinum,
		CreatedAt:      raw.CreatedAt(),
	}

	if raw.Author == "" {
		return comment
	}

	isOP := raw.Author == submission.Author
	isMod := strings.Contains(raw.Distinguished, "moderator")
	isAdmin := strings.Contains(raw.Distinguished, "admin")
	isSpecial := strings.Contains(raw.Distinguished, "special")

	comment.IsOP = &isOP
	comment.IsMod = &isMod
	comment.IsAdmin = &isAdmin
	comment.IsSpecial = &isSpecial

	return comment
}

// foldCommentSentiment streams a new comment's sentiment into its
// subreddit's running averages at creation time. Gilding and role
// aggregates are deliberately not folded here; those wait for the
// submission's window exit.
func (m *Materializer) foldCommentSentiment(subredditName string, score sentiment.Score) error {
	lock := m.subredditLock(subredditName)
	lock.Lock()
	defer lock.Unlock()

	subreddit, err := m.database.GetSubreddit(subredditName)
	if err != nil {
		return fmt.Errorf("failed to load subreddit %s for comment fold: %w", subredditName, err)
	}

	subreddit.AverageCommentsPolarity = UpdateAverage(
		subreddit.AverageCommentsPolarity, score.Polarity, subreddit.TrackedComments)
	subreddit.AverageCommentsSubjectivity = UpdateAverage(
		subreddit.AverageCommentsSubjectivity, score.Subjectivity, subreddit.TrackedComments)
	subreddit.TrackedComments++

	return m.database.SaveSubreddit(subreddit)
}
