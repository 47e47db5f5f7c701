package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/tripwire/pkg/domain"
	"github.com/aretw0/tripwire/pkg/keywords"
)

const helpText = `/help - show this help
/about - about this bot
/keywords - list moderation keywords
/kwadd <keyword...> - add one or more keywords
/kwdel <keyword...> - remove one or more keywords
/kwclear - remove all keywords
/autokick - toggle removing new members whose name matches a keyword
/savekeywords - save keywords to the deployment config and redeploy`

const aboutText = `Group moderation bot driven by Telegram webhooks.
- Removes new members whose username contains a moderation keyword.
- Owners manage the keyword list with chat commands.
- /savekeywords persists the list to the deployment and redeploys it.`

const (
	msgDenied        = "You are not allowed to change moderation settings."
	msgEmptyKeywords = "Please provide at least one keyword, e.g. %s spam"
	msgNotConfigured = "Keyword sync is not configured for this deployment."
)

func formatList(kws []string) string {
	if len(kws) == 0 {
		return "Current keywords: (none)"
	}
	return "Current keywords: " + keywords.Join(kws)
}

func formatAdd(added, present, current []string) string {
	var b strings.Builder
	if len(added) > 0 {
		fmt.Fprintf(&b, "Added keywords: %s\n", keywords.Join(added))
	}
	if len(present) > 0 {
		fmt.Fprintf(&b, "Already present: %s\n", keywords.Join(present))
	}
	b.WriteString(formatList(current))
	return b.String()
}

func formatRemove(removed, missing, current []string) string {
	var b strings.Builder
	if len(removed) > 0 {
		fmt.Fprintf(&b, "Removed keywords: %s\n", keywords.Join(removed))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "Not found: %s\n", keywords.Join(missing))
	}
	b.WriteString(formatList(current))
	return b.String()
}

func formatClear(n int) string {
	return fmt.Sprintf("Cleared all keywords (%d removed).\n%s", n, formatList(nil))
}

func formatAutoKick(enabled bool) string {
	if enabled {
		return "Auto-kick is now enabled."
	}
	return "Auto-kick is now disabled."
}

func formatSynced(kws []string, current bool) string {
	msg := "Keywords saved and redeploy triggered.\nSynced keywords: " + emptyAsNone(keywords.Join(kws))
	if !current {
		msg += "\nKeywords changed while saving; send /savekeywords again to sync the latest list."
	}
	return msg
}

// formatSyncFailure summarizes a Persist error for the requesting actor.
func formatSyncFailure(err error) string {
	if errors.Is(err, domain.ErrSyncNotConfigured) {
		return msgNotConfigured
	}
	var syncErr *domain.SyncError
	if errors.As(err, &syncErr) {
		msg := fmt.Sprintf("Sync failed during %s (%s)", syncErr.Kind.Phase(), syncErr.Kind)
		if syncErr.Detail != "" {
			msg += ": " + syncErr.Detail
		}
		return msg + "\nLocal keywords are kept; send /savekeywords to retry."
	}
	return fmt.Sprintf("Sync failed: %v\nLocal keywords are kept; send /savekeywords to retry.", err)
}

// syncReason is the short reason recorded in SyncState.
func syncReason(err error) string {
	var syncErr *domain.SyncError
	if errors.As(err, &syncErr) {
		return string(syncErr.Kind)
	}
	return err.Error()
}

func emptyAsNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
