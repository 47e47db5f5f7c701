// Package access decides which actors may change moderation state.
package access

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/tripwire/pkg/domain"
)

// Policy authorizes actors against a fixed owner allow-list.
type Policy struct {
	owners map[int64]struct{}
}

// NewPolicy creates a policy for the given owner IDs. With no owners, nobody is authorized.
func NewPolicy(ownerIDs ...int64) *Policy {
	p := &Policy{owners: make(map[int64]struct{}, len(ownerIDs))}
	for _, id := range ownerIDs {
		p.owners[id] = struct{}{}
	}
	return p
}

// IsAuthorized reports whether the actor is an owner.
func (p *Policy) IsAuthorized(actor domain.Actor) bool {
	if p == nil {
		return false
	}
	_, ok := p.owners[actor.ID]
	return ok
}

// Owners returns the number of configured owners.
func (p *Policy) Owners() int {
	if p == nil {
		return 0
	}
	return len(p.owners)
}

// ParseOwners parses a comma separated list of numeric user IDs.
func ParseOwners(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
