package models

import (
	"time"
)

// Subreddit holds lifetime aggregates for a single subreddit. A row is
// created lazily the first time one of its submissions reaches the
// frontpage window. The tracked_* counters are the denominators for the
// running averages and only ever increment.
type Subreddit struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Score       int `json:"score"`        // cumulative score of exited submissions
	NumComments int `json:"num_comments"` // cumulative comment count of exited submissions

	AverageSubmissionPolarity     float64 `json:"average_submission_polarity"`
	AverageSubmissionSubjectivity float64 `json:"average_submission_subjectivity"`
	AverageUpvoteRatio            float64 `json:"average_upvote_ratio"`
	AverageGildedSilver           float64 `json:"average_gilded_silver"`
	AverageGildedGold             float64 `json:"average_gilded_gold"`
	AverageGildedPlatinum         float64 `json:"average_gilded_platinum"`
	AverageIsOP                   float64 `json:"average_is_op"`
	AverageIsMod                  float64 `json:"average_is_mod"`
	AverageIsAdmin                float64 `json:"average_is_admin"`
	AverageIsSpecial              float64 `json:"average_is_special"`
	AverageCommentsPolarity       float64 `json:"average_comments_polarity"`
	AverageCommentsSubjectivity   float64 `json:"average_comments_subjectivity"`

	TrackedSubmissions int `json:"tracked_submissions"`
	TrackedComments    int `json:"tracked_comments"`
}

// RankNone marks a submission that has left the frontpage window.
const RankNone = -1

// Submission represents a tracked frontpage submission. Rows are never
// deleted; once the submission drops out of the window its rank is set
// to RankNone and the row stays behind as history.
type Submission struct {
	ID        string `json:"id"`
	Subreddit string `json:"subreddit"`
	Title     string `json:"title"`
	Author    string `json:"author"` // empty when the account was deleted

	Rank         int `json:"rank"`
	RankPrevious int `json:"rank_previous"`
	RankPeak     int `json:"rank_peak"` // numerically lowest rank observed

	Score       int `json:"score"`
	NumComments int `json:"num_comments"`

	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`

	Domain        string  `json:"domain"`
	LinkFlairText string  `json:"link_flair_text"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	Stickied      bool    `json:"stickied"`
	Over18        bool    `json:"over_18"`
	Spoiler       bool    `json:"spoiler"`
	Locked        bool    `json:"locked"`

	GildedSilver   int `json:"gilded_silver"`
	GildedGold     int `json:"gilded_gold"`
	GildedPlatinum int `json:"gilded_platinum"`

	CreatedAt time.Time `json:"created_at"`
}

// Comment represents a single comment under a tracked submission.
// The role flags are tri-state: nil means the author deleted their
// account before we saw the comment, so the role is unknown rather
// than false.
type Comment struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`

	Score  int  `json:"score"`
	IsRoot bool `json:"is_root"`

	IsOP      *bool `json:"is_op"`
	IsMod     *bool `json:"is_mod"`
	IsAdmin   *bool `json:"is_admin"`
	IsSpecial *bool `json:"is_special"`

	GildedSilver   int `json:"gilded_silver"`
	GildedGold     int `json:"gilded_gold"`
	GildedPlatinum int `json:"gilded_platinum"`

	Characters int `json:"characters"`
	Words      int `json:"words"`
	Sentences  int `json:"sentences"`

	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`

	CreatedAt time.Time `json:"created_at"`
}

// IntSample is one append-only time-series observation of an integer
// metric (scores, comment counts).
type IntSample struct {
	Value     int       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// FloatSample is one append-only time-series observation of a float
// metric (upvote ratios, window averages).
type FloatSample struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Gildings holds per-tier award counts as returned by the API.
type Gildings struct {
	Silver   int `json:"gid_1"`
	Gold     int `json:"gid_2"`
	Platinum int `json:"gid_3"`
}

// SubredditAbout is the display metadata fetched when a subreddit is
// first seen.
type SubredditAbout struct {
	Title       string
	Description string
}

// RawSubmission is a submission as fetched from the content source,
// before any materialization.
type RawSubmission struct {
	ID            string
	Subreddit     string
	Title         string
	Author        string // empty when the account was deleted
	Score         int
	NumComments   int
	Domain        string
	LinkFlairText *string // nil when the submission carries no flair
	UpvoteRatio   float64
	Stickied      bool
	Over18        bool
	Spoiler       bool
	Locked        bool
	Gildings      Gildings
	CreatedUTC    float64
}

// CreatedAt converts the raw epoch timestamp to UTC time.
func (r RawSubmission) CreatedAt() time.Time {
	return time.Unix(int64(r.CreatedUTC), 0).UTC()
}

// RawComment is a comment as fetched from the content source. Body is
// empty when the content is no longer retrievable; such comments are
// skipped during materialization.
type RawComment struct {
	ID            string
	Author        string // empty when the account was deleted
	Body          string
	Score         int
	IsRoot        bool
	Distinguished string // "", "moderator", "admin" or "special"
	Gildings      Gildings
	CreatedUTC    float64
}

// CreatedAt converts the raw epoch timestamp to UTC time.
func (r RawComment) CreatedAt() time.Time {
	return time.Unix(int64(r.CreatedUTC), 0).UTC()
}
