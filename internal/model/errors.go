package model

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound        = errors.New("resource not found") // General not found
	ErrStoryNotFound   = errors.New("story not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrPromptNotFound  = errors.New("prompt template not found")

	// Auth Errors
	ErrUnauthorized = errors.New("unauthorized") // Authentication required or failed
	ErrForbidden    = errors.New("forbidden")    // Authenticated, but lacks permission

	// Story Generation Errors
	ErrUserHasActiveGeneration = errors.New("user already has an active generation task")
	ErrStoryNotReadyYet        = errors.New("story content is not ready yet")
	ErrSubscriptionRequired    = errors.New("active subscription required")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
