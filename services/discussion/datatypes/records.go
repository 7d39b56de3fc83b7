// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the persisted records and HTTP payloads of the
// discussion service.
package datatypes

import (
	"slices"
	"time"

	"github.com/AleutianAI/journalclub/services/discussion/ranking"
)

// MasterPostText is the body of the placeholder root post created with
// every thread.
const MasterPostText = "master"

// Citation is a bibliographic record that discussions attach to.
type Citation struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	FullAuthorNames []string  `json:"full_author_names,omitempty"`
	Journal         string    `json:"journal"`
	Volume          int       `json:"volume,omitempty"`
	Number          int       `json:"number,omitempty"`
	Pages           string    `json:"pages,omitempty"`
	Date            string    `json:"date,omitempty"`
	FullSource      string    `json:"full_source,omitempty"`
	Publisher       string    `json:"publisher,omitempty"`
	Keywords        string    `json:"keywords,omitempty"`
	Abstract        string    `json:"abstract,omitempty"`
	DOI             string    `json:"doi,omitempty"`
	PubmedID        string    `json:"pubmed_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Thread is a named discussion attached to a citation. RootPostID names
// the depth-0 placeholder post; PostCount doubles as the next Order index.
type Thread struct {
	ID          string    `json:"id"`
	CitationID  string    `json:"citation_id"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creator_id"`
	RootPostID  string    `json:"root_post_id"`
	PostCount   int       `json:"post_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Revision is one version of a post body.
type Revision struct {
	Text     string    `json:"text"`
	EditedAt time.Time `json:"edited_at"`
}

// PostRecord is a post as stored. Votes are kept as voter ID sets so a
// user can toggle their vote; the score is derived, never stored.
type PostRecord struct {
	ID         string     `json:"id"`
	ThreadID   string     `json:"thread_id"`
	ParentID   string     `json:"parent_id,omitempty"`
	Depth      int        `json:"depth"`
	Order      int        `json:"order"`
	CreatorID  string     `json:"creator_id"`
	Revisions  []Revision `json:"revisions"`
	Upvoters   []string   `json:"upvoters,omitempty"`
	Downvoters []string   `json:"downvoters,omitempty"`
	Deleted    bool       `json:"deleted,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsMaster reports whether the post is its thread's placeholder root.
func (p *PostRecord) IsMaster() bool {
	return p.Depth == 0
}

// Score returns |upvoters| - |downvoters|, or ranking.DeletedScore for a
// deleted post.
func (p *PostRecord) Score() int {
	if p.Deleted {
		return ranking.DeletedScore
	}
	return len(p.Upvoters) - len(p.Downvoters)
}

// Text returns the latest revision, or "" if there is none.
func (p *PostRecord) Text() string {
	if len(p.Revisions) == 0 {
		return ""
	}
	return p.Revisions[len(p.Revisions)-1].Text
}

// Edited reports whether the post has more than its original revision.
func (p *PostRecord) Edited() bool {
	return len(p.Revisions) > 1
}

// VoteOf returns +1, -1 or 0 for the given voter.
func (p *PostRecord) VoteOf(voterID string) int {
	switch {
	case slices.Contains(p.Upvoters, voterID):
		return 1
	case slices.Contains(p.Downvoters, voterID):
		return -1
	default:
		return 0
	}
}

// ToggleUpvote applies an upvote click: it adds voterID to the upvoters
// and drops any downvote, or removes an existing upvote.
func (p *PostRecord) ToggleUpvote(voterID string) {
	if slices.Contains(p.Upvoters, voterID) {
		p.Upvoters = remove(p.Upvoters, voterID)
		return
	}
	p.Downvoters = remove(p.Downvoters, voterID)
	p.Upvoters = append(p.Upvoters, voterID)
}

// ToggleDownvote mirrors ToggleUpvote.
func (p *PostRecord) ToggleDownvote(voterID string) {
	if slices.Contains(p.Downvoters, voterID) {
		p.Downvoters = remove(p.Downvoters, voterID)
		return
	}
	p.Upvoters = remove(p.Upvoters, voterID)
	p.Downvoters = append(p.Downvoters, voterID)
}

// RankingPost projects the record onto the ranking input.
func (p *PostRecord) RankingPost() ranking.Post {
	return ranking.Post{
		ID:       p.ID,
		ParentID: p.ParentID,
		Depth:    p.Depth,
		Score:    p.Score(),
		Order:    p.Order,
	}
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}
