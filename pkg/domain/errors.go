package domain

import "errors"

// ErrEmptyKeywords is returned when a keyword command carries no keywords.
var ErrEmptyKeywords = errors.New("at least one keyword is required")

// ErrUnauthorized is returned when a non-owner attempts to change keyword state.
var ErrUnauthorized = errors.New("actor is not allowed to change keywords")

// ErrSyncNotConfigured is returned when a sync is requested but no remote target is wired.
var ErrSyncNotConfigured = errors.New("sync target not configured")

// Sentinels matched by SyncError.Is, one per failure kind.
var (
	ErrConfigMissing       = errors.New("remote config entry missing")
	ErrWriteFailed         = errors.New("remote config write failed")
	ErrRedeployUnavailable = errors.New("redeploy source not linked")
	ErrDeployFailed        = errors.New("redeploy request failed")
)
