package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"frontwatch/models"
)

const (
	baseURL      = "https://oauth.reddit.com"
	authURL      = "https://www.reddit.com/api/v1/access_token"
	defaultLimit = 100 // max number of submissions per listing request
)

// TokenBucket implements a rate limiter using the token bucket algorithm
type TokenBucket struct {
	mutex       sync.Mutex
	capacity    int           // maximum tokens the bucket can hold
	tokens      float64       // current number of tokens
	fillRate    float64       // rate at which tokens are added (tokens per second)
	lastRefill  time.Time     // time of last token refill
	waitTimeout time.Duration // max time to wait for a token
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, fillRate float64, waitTimeout time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:    capacity,
		tokens:      1, // lets start with just 1 token to avoid initial burst
		fillRate:    fillRate,
		lastRefill:  time.Now(),
		waitTimeout: waitTimeout,
	}
}

// Take attempts to take a token from the bucket
// Returns true if successful, false if timed out
func (tb *TokenBucket) Take() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	// Refill tokens based on time elapsed
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now

	// Add tokens based on elapsed time and fill rate
	newTokens := elapsed * tb.fillRate
	if newTokens > 0 {
		tb.tokens = tb.tokens + newTokens
		if tb.tokens > float64(tb.capacity) {
			tb.tokens = float64(tb.capacity)
		}
	}

	// If we have at least one token, take it and return true
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	// No tokens available
	return false
}

// TakeWithTimeout attempts to take a token from the bucket, waiting up to waitTimeout
func (tb *TokenBucket) TakeWithTimeout() bool {
	if tb.Take() {
		return true
	}

	// calculate the time to wait for the next token
	tb.mutex.Lock()
	tokensNeeded := 1 - tb.tokens
	timeToWait := time.Duration(tokensNeeded / tb.fillRate * float64(time.Second))
	if timeToWait > tb.waitTimeout {
		timeToWait = tb.waitTimeout
	}
	tb.mutex.Unlock()

	// wait for next token and then grab it
	time.Sleep(timeToWait)
	return tb.Take()
}

// Update updates the rate limiter parameters based on Reddit API headers
func (tb *TokenBucket) Update(used int, reset int, maxRequests int) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	// Reddit allocates 1000 requests per rolling 10-minute period (600 seconds)
	// reset_sec counts down from ~600 to 0
	// remaining is broken/bugged (always 0)
	// used counts up from 0 to 1000

	// use the full allocation period and total requests for calculation
	totalAllocationPeriod := 600
	totalAllocation := 1000

	// calculate the rate based on the entire allocation
	// lets use 95% of the full rate for safety buffer
	fullRate := float64(totalAllocation) / float64(totalAllocationPeriod)
	targetRate := fullRate * 0.95

	// set fill rate based on allocation
	tb.fillRate = targetRate
}

// RedditAPI represents a Reddit API client
type RedditAPI struct {
	clientID            string
	clientSecret        string
	userAgent           string
	httpClient          *http.Client
	accessToken         string
	tokenExpiry         time.Time
	mutex               sync.RWMutex
	log                 *logrus.Logger
	rateLimiter         *TokenBucket
	maxRequestsPerMin   int
	rateRemainingCached int
	rateResetCached     int
	rateUsedCached      int
	rateHeadersMutex    sync.RWMutex
}

// NewRedditAPI creates a new Reddit API client
func NewRedditAPI(clientID, clientSecret, userAgent string, maxRequestsPerMinute int, log *logrus.Logger) *RedditAPI {
	// default to 100 requests per minute (real Reddit limit)
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 100
	}

	// our 10 minute allocation
	totalAllocation := maxRequestsPerMinute * 10

	standardRate := float64(totalAllocation) / 600.0
	targetRate := standardRate * 0.95

	// Create a token bucket rate limiter:
	// - capacity: 1 (no burst capacity when set to 1)
	// - fillRate: 95% of Reddit's rate (1000 requests per 600 seconds)
	// - waitTimeout: max 30 seconds wait for a token
	rateLimiter := NewTokenBucket(
		1, // no burst
		targetRate,
		30*time.Second,
	)

	return &RedditAPI{
		clientID:            clientID,
		clientSecret:        clientSecret,
		userAgent:           userAgent,
		httpClient:          &http.Client{Timeout: 30 * time.Second},
		log:                 log,
		rateLimiter:         rateLimiter,
		maxRequestsPerMin:   maxRequestsPerMinute,
		rateRemainingCached: 0,
		rateResetCached:     600,
		rateUsedCached:      0,
	}
}

// GetRateLimitStatus returns the current rate limit status (remaining requests, reset time in seconds, and used requests)
func (r *RedditAPI) GetRateLimitStatus() (int, int, int) {
	r.rateHeadersMutex.RLock()
	defer r.rateHeadersMutex.RUnlock()
	return r.rateRemainingCached, r.rateResetCached, r.rateUsedCached
}

// authenticate authenticates with the Reddit API
func (r *RedditAPI) authenticate() error {
	// first check if we already have a valid token without holding the lock for long
	r.mutex.RLock()
	token := r.accessToken
	expiry := r.tokenExpiry
	r.mutex.RUnlock()

	if token != "" && time.Now().Before(expiry) {
		return nil
	}

	r.log.Info("Authenticating with Reddit API")

	// wait for rate limiting
	if !r.rateLimiter.TakeWithTimeout() {
		return fmt.Errorf("rate limit exceeded during authentication attempt")
	}

	data := url.Values{}

	r.log.Debug("Using application-only auth with client credentials")
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequest("POST", authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute auth request: %w", err)
	}
	defer resp.Body.Close()

	r.updateRateLimits(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("auth request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var authResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}

	r.mutex.Lock()
	r.accessToken = authResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn) * time.Second)
	r.mutex.Unlock()

	r.log.Info("Successfully authenticated with Reddit API")
	return nil
}

// doGet performs an authenticated GET against the API and returns the
// response body.
func (r *RedditAPI) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	if err := r.authenticate(); err != nil {
		return nil, err
	}

	if !r.rateLimiter.TakeWithTimeout() {
		return nil, fmt.Errorf("rate limit exceeded for %s", endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	r.mutex.RLock()
	token := r.accessToken
	r.mutex.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	r.updateRateLimits(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.log.WithFields(logrus.Fields{
			"endpoint":      endpoint,
			"response_body": string(body),
			"status_code":   resp.StatusCode,
		}).Error("Reddit API error response")
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// TopSubmissions fetches the current top submissions on /r/all in rank
// order. The returned slice index is the zero-based rank.
func (r *RedditAPI) TopSubmissions(ctx context.Context, limit int) ([]models.RawSubmission, error) {
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}

	endpoint := fmt.Sprintf("%s/r/all/hot.json?limit=%d&raw_json=1", baseURL, limit)

	r.log.WithField("limit", limit).Info("Fetching frontpage listing")

	body, err := r.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var listing submissionListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing response: %w", err)
	}

	submissions := make([]models.RawSubmission, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		submissions = append(submissions, child.Data.toRaw())
	}

	r.log.WithField("submission_count", len(submissions)).Info("Fetched frontpage listing")

	return submissions, nil
}

// SubmissionComments fetches the flattened comment tree for a
// submission. Collapsed "load more" placeholders are treated as absent
// (depth-0 resolution).
func (r *RedditAPI) SubmissionComments(ctx context.Context, id string) ([]models.RawComment, error) {
	return r.fetchComments(ctx, id, "")
}

// SubmissionCommentsOldest re-fetches a submission's comments sorted
// oldest first. Used to reach comments hidden behind collapsed
// placeholders on long threads.
func (r *RedditAPI) SubmissionCommentsOldest(ctx context.Context, id string) ([]models.RawComment, error) {
	return r.fetchComments(ctx, id, "old")
}

func (r *RedditAPI) fetchComments(ctx context.Context, id, sort string) ([]models.RawComment, error) {
	endpoint := fmt.Sprintf("%s/comments/%s.json?limit=500&raw_json=1", baseURL, id)
	if sort != "" {
		endpoint += "&sort=" + sort
	}

	body, err := r.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	comments, err := parseCommentsResponse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode comments for %s: %w", id, err)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": id,
		"sort":          sort,
		"comment_count": len(comments),
	}).Debug("Fetched submission comments")

	return comments, nil
}

// SubredditAbout fetches a subreddit's title and public description.
func (r *RedditAPI) SubredditAbout(ctx context.Context, name string) (models.SubredditAbout, error) {
	endpoint := fmt.Sprintf("%s/r/%s/about.json?raw_json=1", baseURL, url.PathEscape(name))

	body, err := r.doGet(ctx, endpoint)
	if err != nil {
		return models.SubredditAbout{}, err
	}

	var about struct {
		Data struct {
			Title             string `json:"title"`
			PublicDescription string `json:"public_description"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &about); err != nil {
		return models.SubredditAbout{}, fmt.Errorf("failed to decode about response: %w", err)
	}

	return models.SubredditAbout{
		Title:       about.Data.Title,
		Description: about.Data.PublicDescription,
	}, nil
}

// updateRateLimits updates the rate limiter based on response headers
// TODO: this isn't actually adapting based off of the header responses;  this is simply used for debuggng atm
func (r *RedditAPI) updateRateLimits(resp *http.Response) {
	// X-Ratelimit-Used: Approximate number of requests used in this period
	// X-Ratelimit-Remaining: Approximate number of requests left to use (bugged - always 0)
	// X-Ratelimit-Reset: Approximate number of seconds to end of period (counts down from ~600 seconds)
	used := getHeaderAsInt(resp.Header, "X-Ratelimit-Used")
	remaining := getHeaderAsInt(resp.Header, "X-Ratelimit-Remaining") // always 0, appears bugged
	reset := getHeaderAsInt(resp.Header, "X-Ratelimit-Reset")

	// skip if we didn't get valid headers for some reason
	if reset == 0 && used == 0 {
		return
	}

	// reddit allocates 1000 requests per 600 seconds (10 minutes); this indicates the total allocation of 1k
	totalAllocation := 1000.0

	r.rateHeadersMutex.Lock()
	r.rateRemainingCached = remaining // bugged - always 0; update anyways in case reddit fixes it
	r.rateResetCached = reset
	r.rateUsedCached = used
	r.rateHeadersMutex.Unlock()

	r.rateLimiter.Update(used, reset, r.maxRequestsPerMin)

	r.log.WithFields(logrus.Fields{
		"used":          used,
		"reset_sec":     reset,
		"new_fill_rate": r.rateLimiter.fillRate,
		"usage_pct":     float64(used) / totalAllocation * 100,
	}).Debug("Updated rate limiter based on Reddit headers")
}

func getHeaderAsInt(header http.Header, name string) int {
	value := header.Get(name)
	if value == "" {
		return 0
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return intValue
}
