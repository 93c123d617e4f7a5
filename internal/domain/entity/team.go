package entity

import (
	"fmt"
	"sort"
)

// MemberID identifies a team member within an order
type MemberID string

// TeamMember is one participant captured in a report's team snapshot
type TeamMember struct {
	ID         MemberID  `json:"id" validate:"required"`
	Name       string    `json:"name" validate:"required,max=200"`
	ExternalID string    `json:"external_id"`
	IsLeader   bool      `json:"is_leader"`
	RedirectTo *MemberID `json:"redirect_to,omitempty"`
}

// Team maps member identifiers to their snapshot record
type Team map[MemberID]TeamMember

// Validate checks the structural invariants of a team snapshot:
// exactly one leader, and every payment redirect points at a different,
// non-redirecting member of the same team.
func (t Team) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: team has no members", ErrValidation)
	}

	leaders := 0
	for id, m := range t {
		if m.ID != id {
			return fmt.Errorf("%w: member key %s does not match id %s", ErrValidation, id, m.ID)
		}
		if err := validate.Struct(m); err != nil {
			return fmt.Errorf("%w: member %s: %v", ErrValidation, id, err)
		}
		if m.IsLeader {
			leaders++
		}
		if m.RedirectTo == nil {
			continue
		}
		target := *m.RedirectTo
		if target == id {
			return fmt.Errorf("%w: member %s redirects payment to itself", ErrValidation, id)
		}
		tm, ok := t[target]
		if !ok {
			return fmt.Errorf("%w: member %s redirects payment to unknown member %s", ErrValidation, id, target)
		}
		if tm.RedirectTo != nil {
			return fmt.Errorf("%w: member %s redirects to %s which redirects again", ErrValidation, id, target)
		}
	}

	if leaders != 1 {
		return fmt.Errorf("%w: team must have exactly one leader, found %d", ErrValidation, leaders)
	}
	return nil
}

// Leader returns the team leader, if present
func (t Team) Leader() (TeamMember, bool) {
	for _, m := range t {
		if m.IsLeader {
			return m, true
		}
	}
	return TeamMember{}, false
}

// Has reports whether id is a member of the team
func (t Team) Has(id MemberID) bool {
	_, ok := t[id]
	return ok
}

// PayeeFor returns who receives id's payout after applying redirects
func (t Team) PayeeFor(id MemberID) MemberID {
	m, ok := t[id]
	if !ok || m.RedirectTo == nil {
		return id
	}
	return *m.RedirectTo
}

// IDs returns member identifiers in a stable order
func (t Team) IDs() []MemberID {
	ids := make([]MemberID, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
