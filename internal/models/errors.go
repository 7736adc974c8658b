package models

import "errors"

var (
	// ErrConfiguration is returned for invalid settings or a missing corpus root.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotInitialized is returned when searching or chatting before the index is built or loaded.
	ErrNotInitialized = errors.New("index not initialized")
	// ErrGenerationUnavailable is returned when the generation capability cannot be reached.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrTranslationFailed is returned by translators; callers degrade rather than fail.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrInvalidRequest is returned for malformed queries.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmptyText is returned when asked to embed blank text.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrRebuildInProgress is returned when a rebuild is requested while one is running.
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
)
