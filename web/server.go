package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"frontwatch/cache"
	"frontwatch/db"
	"frontwatch/models"
)

// search queries longer than this cannot be meaningful titles and are
// answered with an empty result set
const maxSearchQueryLength = 300

// Server exposes the read-only query surface over the persisted state.
// No aggregation logic lives here.
type Server struct {
	database  *db.Database
	responses *cache.Cache
	log       *logrus.Logger
}

// NewServer builds the echo instance with all read routes registered.
func NewServer(database *db.Database, responses *cache.Cache, log *logrus.Logger, maxRequestsPerMinute int) *echo.Echo {
	s := &Server{
		database:  database,
		responses: responses,
		log:       log,
	}

	e := echo.New()
	e.HideBanner = true

	// middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	requestsPerSecond := float64(maxRequestsPerMinute) / 60.0

	rateLimit := rate.Limit(requestsPerSecond * 0.95) // use 95% of the rate limit to be safe

	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rateLimit,
				Burst:     1, // no burst capability
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
	}
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig))

	e.GET("/api/frontpage", s.handleFrontpage)
	e.GET("/api/submissions/:id", s.handleSubmission)
	e.GET("/api/subreddits/:name", s.handleSubreddit)
	e.GET("/api/search", s.handleSearch)

	// health check endpoint; useful for k8s liveliness probes but not strictly required in this case
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	return e
}

// FrontpageItem is a windowed submission plus its rank movement since
// the previous tick.
type FrontpageItem struct {
	models.Submission
	RankDelta     int    `json:"rank_delta"` // positive when climbing
	RankDirection string `json:"rank_direction"`
}

// FrontpageResponse lists the currently windowed submissions by rank,
// with the history of per-tick window averages.
type FrontpageResponse struct {
	Submissions     []FrontpageItem      `json:"submissions"`
	AverageScores   []models.FloatSample `json:"average_score_history"`
	AverageComments []models.FloatSample `json:"average_comment_history"`
}

func (s *Server) handleFrontpage(c echo.Context) error {
	if cached, ok := s.responses.Get(cache.KeyFrontpage); ok {
		return c.JSON(http.StatusOK, cached)
	}

	submissions, err := s.database.WindowedSubmissions()
	if err != nil {
		s.log.WithError(err).Error("Failed to list frontpage submissions")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	averageScores, err := s.database.FrontpageAverageScoreSamples()
	if err != nil {
		s.log.WithError(err).Error("Failed to load frontpage average score series")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}
	averageComments, err := s.database.FrontpageAverageCommentSamples()
	if err != nil {
		s.log.WithError(err).Error("Failed to load frontpage average comment series")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	items := make([]FrontpageItem, 0, len(submissions))
	for _, submission := range submissions {
		delta := submission.RankPrevious - submission.Rank

		direction := "steady"
		if delta > 0 {
			direction = "up"
		} else if delta < 0 {
			direction = "down"
		}

		items = append(items, FrontpageItem{
			Submission:    submission,
			RankDelta:     delta,
			RankDirection: direction,
		})
	}

	response := FrontpageResponse{
		Submissions:     items,
		AverageScores:   averageScores,
		AverageComments: averageComments,
	}
	s.responses.Set(cache.KeyFrontpage, response)

	return c.JSON(http.StatusOK, response)
}

// SubmissionResponse is one submission with its comments,
// time series and derived timing metrics.
type SubmissionResponse struct {
	Submission models.Submission    `json:"submission"`
	Comments   []models.Comment     `json:"comments"`
	Scores     []models.IntSample   `json:"score_history"`
	Counts     []models.IntSample   `json:"comment_history"`
	Ratios     []models.FloatSample `json:"upvote_ratio_history"`
	Lifetime   string               `json:"lifetime"`  // first tracked sample to last
	RiseTime   string               `json:"rise_time"` // creation to first tracked sample
}

func (s *Server) handleSubmission(c echo.Context) error {
	id := c.Param("id")

	submission, err := s.database.GetSubmission(id)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no submission with id %s", id),
		})
	}
	if err != nil {
		s.log.WithError(err).WithField("submission_id", id).Error("Failed to load submission")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	comments, err := s.database.CommentsBySubmission(id)
	if err != nil {
		s.log.WithError(err).WithField("submission_id", id).Error("Failed to load comments")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	scores, err := s.database.SubmissionScoreSamples(id)
	if err != nil {
		s.log.WithError(err).WithField("submission_id", id).Error("Failed to load score series")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}
	counts, err := s.database.SubmissionCommentSamples(id)
	if err != nil {
		s.log.WithError(err).WithField("submission_id", id).Error("Failed to load comment series")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}
	ratios, err := s.database.SubmissionRatioSamples(id)
	if err != nil {
		s.log.WithError(err).WithField("submission_id", id).Error("Failed to load ratio series")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	lifetime := time.Duration(0)
	riseTime := time.Duration(0)
	if len(scores) > 0 {
		lifetime = scores[len(scores)-1].Timestamp.Sub(scores[0].Timestamp)
		riseTime = scores[0].Timestamp.Sub(submission.CreatedAt)
	}

	return c.JSON(http.StatusOK, SubmissionResponse{
		Submission: *submission,
		Comments:   comments,
		Scores:     scores,
		Counts:     counts,
		Ratios:     ratios,
		Lifetime:   formatDuration(lifetime),
		RiseTime:   formatDuration(riseTime),
	})
}

// SubredditResponse is one subreddit's aggregates with its tracked
// submissions ordered by peak rank.
type SubredditResponse struct {
	Subreddit   models.Subreddit    `json:"subreddit"`
	Submissions []models.Submission `json:"submissions"`
	Scores      []models.IntSample  `json:"score_history"`
}

func (s *Server) handleSubreddit(c echo.Context) error {
	name := c.Param("name")

	subreddit, err := s.database.GetSubreddit(name)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no statistics available for subreddit %s", name),
		})
	}
	if err != nil {
		s.log.WithError(err).WithField("subreddit", name).Error("Failed to load subreddit")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	submissions, err := s.database.SubmissionsBySubreddit(name)
	if err != nil {
		s.log.WithError(err).WithField("subreddit", name).Error("Failed to list subreddit submissions")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	scores, err := s.database.SubredditScoreSamples(name)
	if err != nil {
		s.log.WithError(err).WithField("subreddit", name).Error("Failed to load subreddit series")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	return c.JSON(http.StatusOK, SubredditResponse{
		Subreddit:   *subreddit,
		Submissions: submissions,
		Scores:      scores,
	})
}

// SearchResponse echoes the query alongside its matches.
type SearchResponse struct {
	Query       string              `json:"query"`
	Submissions []models.Submission `json:"submissions"`
}

func (s *Server) handleSearch(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))

	// permalink queries resolve straight to the submission endpoint
	if id, ok := submissionIDFromPermalink(query); ok {
		return c.Redirect(http.StatusFound, "/api/submissions/"+id)
	}

	if query == "" || len(query) >= maxSearchQueryLength {
		return c.JSON(http.StatusOK, SearchResponse{Query: query, Submissions: []models.Submission{}})
	}

	opts := db.SearchOptions{
		Query:   query,
		Since:   searchCutoff(c.QueryParam("time"), time.Now().UTC()),
		OrderBy: searchOrder(c.QueryParam("order_by")),
	}
	if subreddits := c.QueryParam("subreddits"); subreddits != "" {
		for _, name := range strings.Split(subreddits, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				opts.Subreddits = append(opts.Subreddits, trimmed)
			}
		}
	}

	submissions, err := s.database.SearchSubmissions(opts)
	if err != nil {
		s.log.WithError(err).WithField("query", query).Error("Search failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
	}

	return c.JSON(http.StatusOK, SearchResponse{Query: query, Submissions: submissions})
}

// submissionIDFromPermalink extracts a submission id from reddit
// permalink shapes ("//redd.it/<id>" and ".../comments/<id>/...").
func submissionIDFromPermalink(query string) (string, bool) {
	if idx := strings.Index(query, "//redd.it/"); idx >= 0 {
		id := query[idx+len("//redd.it/"):]
		if cut := strings.IndexAny(id, "/?"); cut >= 0 {
			id = id[:cut]
		}
		if id != "" {
			return id, true
		}
		return "", false
	}

	if !strings.Contains(query, "//reddit.com") && !strings.Contains(query, "//www.reddit.com") {
		return "", false
	}
	_, rest, found := strings.Cut(query, "/comments/")
	if !found {
		return "", false
	}
	id := rest
	if cut := strings.IndexAny(id, "/?"); cut >= 0 {
		id = id[:cut]
	}
	if id == "" {
		return "", false
	}
	return id, true
}

// searchCutoff maps a time-window keyword to the earliest creation time
// to include; the zero time disables the filter.
func searchCutoff(window string, now time.Time) time.Time {
	switch window {
	case "today":
		return now.AddDate(0, 0, -1)
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, 0, -30)
	case "year":
		return now.AddDate(0, 0, -365)
	default:
		return time.Time{}
	}
}

// searchOrder maps the public sort keys onto store order keys; anything
// unrecognized keeps relevance order.
func searchOrder(orderBy string) string {
	switch orderBy {
	case "score", "comments":
		return orderBy
	default:
		return ""
	}
}

// formatDuration renders a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
