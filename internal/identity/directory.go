package identity

import (
	"context"
	"sync"

	id "labcert/pkg/domain"
	"labcert/pkg/platform/sentinel"
)

// StaffMember is a directory entry.
type StaffMember struct {
	UserID id.UserID
	Name   string
	Role   string
}

// InMemoryDirectory resolves staff IDs to display names. Production
// deployments sync it from the LIMS user service at startup.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	members map[id.UserID]StaffMember
}

// NewInMemoryDirectory creates a directory seeded with the given members.
func NewInMemoryDirectory(members ...StaffMember) *InMemoryDirectory {
	d := &InMemoryDirectory{members: make(map[id.UserID]StaffMember, len(members))}
	for _, m := range members {
		d.members[m.UserID] = m
	}
	return d
}

// Upsert adds or replaces a member.
func (d *InMemoryDirectory) Upsert(m StaffMember) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.UserID] = m
}

// DisplayName resolves a staff ID to a display name.
func (d *InMemoryDirectory) DisplayName(_ context.Context, userID id.UserID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return m.Name, nil
}
