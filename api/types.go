package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"frontwatch/models"
)

// submissionListing is the Reddit API response shape for a listing of
// submissions.
type submissionListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string         `json:"kind"`
			Data submissionData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// submissionData is the wire shape of a single submission.
type submissionData struct {
	ID            string          `json:"id"`
	Subreddit     string          `json:"subreddit"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Score         int             `json:"score"`
	NumComments   int             `json:"num_comments"`
	Domain        string          `json:"domain"`
	LinkFlairText *string         `json:"link_flair_text"`
	UpvoteRatio   float64         `json:"upvote_ratio"`
	Stickied      bool            `json:"stickied"`
	Over18        bool            `json:"over_18"`
	Spoiler       bool            `json:"spoiler"`
	Locked        bool            `json:"locked"`
	Gildings      models.Gildings `json:"gildings"`
	CreatedUTC    float64         `json:"created_utc"`
}

func (s submissionData) toRaw() models.RawSubmission {
	return models.RawSubmission{
		ID:            s.ID,
		Subreddit:     s.Subreddit,
		Title:         s.Title,
		Author:        normalizeAuthor(s.Author),
		Score:         s.Score,
		NumComments:   s.NumComments,
		Domain:        s.Domain,
		LinkFlairText: s.LinkFlairText,
		UpvoteRatio:   s.UpvoteRatio,
		Stickied:      s.Stickied,
		Over18:        s.Over18,
		Spoiler:       s.Spoiler,
		Locked:        s.Locked,
		Gildings:      s.Gildings,
		CreatedUTC:    s.CreatedUTC,
	}
}

// commentNode is one node of the comment tree. Kind "t1" is a comment;
// kind "more" is a collapsed placeholder that is treated as absent.
type commentNode struct {
	Kind string      `json:"kind"`
	Data commentData `json:"data"`
}

type commentData struct {
	ID            string          `json:"id"`
	Author        string          `json:"author"`
	Body          string          `json:"body"`
	Score         int             `json:"score"`
	ParentID      string          `json:"parent_id"`
	Distinguished *string         `json:"distinguished"`
	Gildings      models.Gildings `json:"gildings"`
	CreatedUTC    float64         `json:"created_utc"`
	// Replies is either an empty string or a nested listing, so it has
	// to be decoded lazily.
	Replies json.RawMessage `json:"replies"`
}

// parseCommentsResponse decodes a /comments/{id}.json response, which is
// a two-element array: the submission listing and the comment tree.
func parseCommentsResponse(body []byte) ([]models.RawComment, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("unexpected comments payload: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("comments payload has %d listings, want 2", len(parts))
	}

	var tree struct {
		Data struct {
			Children []commentNode `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(parts[1], &tree); err != nil {
		return nil, fmt.Errorf("unexpected comment tree: %w", err)
	}

	return flattenComments(tree.Data.Children), nil
}

// flattenComments walks a comment tree depth first, collecting every t1
// node and skipping "more" placeholders entirely.
func flattenComments(nodes []commentNode) []models.RawComment {
	comments := make([]models.RawComment, 0, len(nodes))

	for _, node := range nodes {
		if node.Kind != "t1" {
			continue
		}

		distinguished := ""
		if node.Data.Distinguished != nil {
			distinguished = *node.Data.Distinguished
		}

		comments = append(comments, models.RawComment{
			ID:            node.Data.ID,
			Author:        normalizeAuthor(node.Data.Author),
			Body:          normalizeBody(node.Data.Body),
			Score:         node.Data.Score,
			IsRoot:        strings.HasPrefix(node.Data.ParentID, "t3_"),
			Distinguished: distinguished,
			Gildings:      node.Data.Gildings,
			CreatedUTC:    node.Data.CreatedUTC,
		})

		if len(node.Data.Replies) > 0 {
			var nested struct {
				Data struct {
					Children []commentNode `json:"children"`
				} `json:"data"`
			}
			// replies is "" when there are none; ignore anything that
			// isn't a listing
			if err := json.Unmarshal(node.Data.Replies, &nested); err == nil {
				comments = append(comments, flattenComments(nested.Data.Children)...)
			}
		}
	}

	return comments
}

// normalizeAuthor maps the deleted-account marker to an empty string so
// downstream code has a single representation of "author unknown."
func normalizeAuthor(author string) string {
	if author == "[deleted]" {
		return ""
	}
	return author
}

// normalizeBody maps removed or deleted bodies to an empty string; the
// materializer skips comments without a retrievable body.
func normalizeBody(body string) string {
	if body == "[deleted]" || body == "[removed]" {
		return ""
	}
	return body
}
