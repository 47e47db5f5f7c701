package dispatch

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripwire/pkg/domain"
)

// KeywordLister exposes the current keywords in order.
type KeywordLister interface {
	List() []string
}

// Verdict is the Guard's decision about a joining member.
type Verdict struct {
	Remove  bool
	ChatID  int64
	Member  domain.Actor
	Keyword string
}

// Notice is the chat notification announcing the removal.
func (v Verdict) Notice() string {
	var name string
	switch {
	case v.Member.Username != "":
		name = "@" + v.Member.Username
	case v.Member.DisplayName != "":
		name = v.Member.DisplayName
	default:
		name = fmt.Sprintf("user %d", v.Member.ID)
	}
	return fmt.Sprintf("Removed %s: name contains the keyword %q.", name, v.Keyword)
}

// Guard checks joining members against the keyword list. It does not look at
// the auto-kick flag; callers gate on it before calling Evaluate.
type Guard struct {
	keywords KeywordLister
}

// NewGuard creates a Guard reading keywords from kw.
func NewGuard(kw KeywordLister) *Guard {
	return &Guard{keywords: kw}
}

// Evaluate matches the member's display name against each keyword in list
// order, case-insensitively, and stops at the first match.
func (g *Guard) Evaluate(join domain.MemberJoined) Verdict {
	v := Verdict{ChatID: join.ChatID, Member: join.Member}
	name := strings.ToLower(join.Member.DisplayName)
	if name == "" {
		return v
	}
	for _, kw := range g.keywords.List() {
		if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
			v.Remove = true
			v.Keyword = kw
			return v
		}
	}
	return v
}
