package domain

import "fmt"

// SyncStatus describes how local keyword state relates to the remote copy.
type SyncStatus int

const (
	// SyncClean means the last successful sync matches the local keywords.
	SyncClean SyncStatus = iota
	// SyncDirty means the keywords changed since the last successful sync.
	SyncDirty
	// SyncFailed means the last sync attempt failed; local keywords stay authoritative.
	SyncFailed
)

func (s SyncStatus) String() string {
	switch s {
	case SyncClean:
		return "clean"
	case SyncDirty:
		return "dirty"
	case SyncFailed:
		return "sync_failed"
	default:
		return fmt.Sprintf("SyncStatus(%d)", int(s))
	}
}

// SyncState is the status plus the failure reason when Status is SyncFailed.
type SyncState struct {
	Status SyncStatus
	Reason string
}

func (s SyncState) String() string {
	if s.Status == SyncFailed && s.Reason != "" {
		return fmt.Sprintf("%s(%s)", s.Status, s.Reason)
	}
	return s.Status.String()
}

// SyncErrorKind tags which step of the remote update failed.
type SyncErrorKind string

const (
	SyncConfigMissing       SyncErrorKind = "config_missing"
	SyncWriteFailed         SyncErrorKind = "write_failed"
	SyncRedeployUnavailable SyncErrorKind = "redeploy_unavailable"
	SyncDeployFailed        SyncErrorKind = "deploy_failed"
)

// Phase names the remote phase a kind belongs to: the config write or the redeploy.
func (k SyncErrorKind) Phase() string {
	switch k {
	case SyncConfigMissing, SyncWriteFailed:
		return "config write"
	case SyncRedeployUnavailable, SyncDeployFailed:
		return "redeploy"
	default:
		return "sync"
	}
}

func (k SyncErrorKind) sentinel() error {
	switch k {
	case SyncConfigMissing:
		return ErrConfigMissing
	case SyncWriteFailed:
		return ErrWriteFailed
	case SyncRedeployUnavailable:
		return ErrRedeployUnavailable
	case SyncDeployFailed:
		return ErrDeployFailed
	default:
		return nil
	}
}

// SyncError is returned by a Syncer when persisting keywords fails.
// Err carries the transport-level cause, if any.
type SyncError struct {
	Kind   SyncErrorKind
	Detail string
	Err    error
}

func (e *SyncError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("sync %s: %s", e.Kind.Phase(), e.Kind)
	}
	return fmt.Sprintf("sync %s: %s: %s", e.Kind.Phase(), e.Kind, e.Detail)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *SyncError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}
