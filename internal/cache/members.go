package cache

import (
	"context"
	"time"

	"clubledger/internal/core"
	"clubledger/internal/storage"
)

const membersKey = "members"

// MemberDirectory caches the member list of another directory.
type MemberDirectory struct {
	next  storage.MemberDirectory
	cache *LRUCache[[]core.Member]
}

func NewMemberDirectory(next storage.MemberDirectory, ttl time.Duration) *MemberDirectory {
	return &MemberDirectory{next: next, cache: NewLRUCache[[]core.Member](1, ttl)}
}

func (d *MemberDirectory) ListMembers(ctx context.Context) ([]core.Member, error) {
	if members, ok := d.cache.Get(membersKey); ok {
		return append([]core.Member(nil), members...), nil
	}
	members, err := d.next.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	d.cache.Set(membersKey, members)
	return append([]core.Member(nil), members...), nil
}

// Invalidate forces the next call to reload.
func (d *MemberDirectory) Invalidate() {
	d.cache.Delete(membersKey)
}

// CleanExpired lets a Manager sweep the directory cache.
func (d *MemberDirectory) CleanExpired() int {
	return d.cache.CleanExpired()
}
