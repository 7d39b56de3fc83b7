// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"time"

	"github.com/AleutianAI/journalclub/services/discussion/ranking"
)

// CitationView adds display fields derived from the stored citation.
type CitationView struct {
	Citation
	ShortAuthor    string   `json:"short_author"`
	FormattedNames string   `json:"formatted_names,omitempty"`
	Year           string   `json:"year,omitempty"`
	Threads        []Thread `json:"threads,omitempty"`
}

// NewCitationView formats c for display.
func NewCitationView(c Citation, threads []Thread) CitationView {
	return CitationView{
		Citation:       c,
		ShortAuthor:    FirstAuthor(c.Author),
		FormattedNames: FormatFullNames(c.FullAuthorNames),
		Year:           CitationYear(c.Date),
		Threads:        threads,
	}
}

// PostView is a post as shown in a ranked thread.
type PostView struct {
	ID             string    `json:"id"`
	ParentID       string    `json:"parent_id,omitempty"`
	Depth          int       `json:"depth"`
	CreatorID      string    `json:"creator_id"`
	Text           string    `json:"text"`
	Score          int       `json:"score"`
	AggregateScore int       `json:"aggregate_score"`
	Deleted        bool      `json:"deleted,omitempty"`
	Edited         bool      `json:"edited,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewPostView merges a stored record with its computed aggregate score.
// Deleted posts keep their place but hide their body and author.
func NewPostView(rec *PostRecord, aggregate int) PostView {
	v := PostView{
		ID:             rec.ID,
		ParentID:       rec.ParentID,
		Depth:          rec.Depth,
		CreatorID:      rec.CreatorID,
		Text:           rec.Text(),
		Score:          rec.Score(),
		AggregateScore: aggregate,
		Deleted:        rec.Deleted,
		Edited:         rec.Edited(),
		CreatedAt:      rec.CreatedAt,
	}
	if rec.Deleted {
		v.Text = ""
		v.CreatorID = ""
	}
	return v
}

// ThreadItem is one element of an indent-mode thread. Kind is "indent",
// "dedent" or "post"; Post is set only for "post".
type ThreadItem struct {
	Kind      string    `json:"kind"`
	Depth     int       `json:"depth"`
	EvenDepth bool      `json:"even_depth"`
	Post      *PostView `json:"post,omitempty"`
}

// NewThreadItem converts a ranking item. view must be non-nil for posts.
func NewThreadItem(it ranking.Item, view *PostView) ThreadItem {
	out := ThreadItem{
		Kind:      it.Kind.String(),
		Depth:     it.Depth,
		EvenDepth: it.EvenDepth(),
	}
	if it.Kind == ranking.KindNode {
		out.Post = view
	}
	return out
}

// ThreadResponse is the body of GET /v1/threads/:threadId.
// Items is filled in indent mode, Posts in plain mode. Items is always
// sent, empty when there is nothing to show.
type ThreadResponse struct {
	Thread Thread       `json:"thread"`
	Mode   ranking.Mode `json:"mode"`
	Root   *PostView    `json:"root,omitempty"`
	Items  []ThreadItem `json:"items"`
	Posts  []PostView   `json:"posts,omitempty"`
}

// VoteResponse is the body returned by the vote endpoints.
type VoteResponse struct {
	PostID string `json:"post_id"`
	Score  int    `json:"score"`
	Vote   int    `json:"vote"`
}
