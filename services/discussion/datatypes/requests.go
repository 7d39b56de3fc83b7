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
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxPostBytes caps the size of a post body.
const MaxPostBytes = 16 * 1024

// =============================================================================
// Shared Validator Instance
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("maxbytes", validateMaxBytes)
	_ = validate.RegisterValidation("notblank", validateNotBlank)
}

// validateMaxBytes checks byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPostBytes
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Validator returns the package validator, with custom tags registered.
// The config package reuses it.
func Validator() *validator.Validate {
	return validate
}

// =============================================================================
// Requests
// =============================================================================

// CreateCitationRequest is the body of POST /v1/citations.
type CreateCitationRequest struct {
	Title           string   `json:"title" validate:"notblank,max=1000"`
	Author          string   `json:"author" validate:"max=4000"`
	FullAuthorNames []string `json:"full_author_names" validate:"max=500,dive,max=200"`
	Journal         string   `json:"journal" validate:"max=500"`
	Volume          int      `json:"volume" validate:"gte=0,lte=65535"`
	Number          int      `json:"number" validate:"gte=0,lte=65535"`
	Pages           string   `json:"pages" validate:"max=50"`
	Date            string   `json:"date" validate:"max=50"`
	FullSource      string   `json:"full_source" validate:"max=1000"`
	Publisher       string   `json:"publisher" validate:"max=500"`
	Keywords        string   `json:"keywords" validate:"max=2000"`
	Abstract        string   `json:"abstract" validate:"max=20000"`
	DOI             string   `json:"doi" validate:"max=200"`
	PubmedID        string   `json:"pubmed_id" validate:"omitempty,numeric,max=20"`
}

// Validate checks field constraints.
func (r *CreateCitationRequest) Validate() error {
	return validate.Struct(r)
}

// CreateThreadRequest is the body of POST /v1/citations/:citationId/threads.
type CreateThreadRequest struct {
	Description string `json:"description" validate:"notblank,max=200"`
	CreatorID   string `json:"creator_id" validate:"notblank,max=100"`
}

// Validate checks field constraints.
func (r *CreateThreadRequest) Validate() error {
	return validate.Struct(r)
}

// CreatePostRequest is the body of POST /v1/threads/:threadId/posts.
// An empty ParentID replies to the thread's root post.
type CreatePostRequest struct {
	ParentID  string `json:"parent_id" validate:"max=100"`
	CreatorID string `json:"creator_id" validate:"notblank,max=100"`
	Text      string `json:"text" validate:"notblank,maxbytes"`
}

// Validate checks field constraints.
func (r *CreatePostRequest) Validate() error {
	return validate.Struct(r)
}

// EditPostRequest is the body of PATCH /v1/posts/:postId.
type EditPostRequest struct {
	CreatorID string `json:"creator_id" validate:"notblank,max=100"`
	Text      string `json:"text" validate:"notblank,maxbytes"`
}

// Validate checks field constraints.
func (r *EditPostRequest) Validate() error {
	return validate.Struct(r)
}

// DeletePostRequest is the body of DELETE /v1/posts/:postId.
type DeletePostRequest struct {
	CreatorID string `json:"creator_id" validate:"notblank,max=100"`
}

// Validate checks field constraints.
func (r *DeletePostRequest) Validate() error {
	return validate.Struct(r)
}

// VoteRequest is the body of the upvote and downvote endpoints.
type VoteRequest struct {
	VoterID string `json:"voter_id" validate:"notblank,max=100"`
}

// Validate checks field constraints.
func (r *VoteRequest) Validate() error {
	return validate.Struct(r)
}
