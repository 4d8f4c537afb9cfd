package repository

import (
	"context"
	"fmt"
	"sync"
)

type subscriber struct {
	ch   chan Snapshot
	want map[Collection]bool
}

// broker fans commit snapshots out to subscribers. Each subscriber holds at
// most one pending snapshot; a newer one absorbs it.
//
// Stores call publish while still holding their commit lock, and subscribe
// with the same lock held around the initial load, so every subscriber sees
// commits in version order starting right after its initial snapshot.
type broker struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	last uint64
}

func newBroker() *broker {
	return &broker{subs: make(map[*subscriber]struct{})}
}

// wantSet turns a Subscribe argument list into a set. No collections means all.
func wantSet(collections []Collection) (map[Collection]bool, error) {
	if len(collections) == 0 {
		collections = AllCollections
	}
	want := make(map[Collection]bool, len(collections))
	for _, c := range collections {
		switch c {
		case CollectionProducts, CollectionSales, CollectionOwners:
			want[c] = true
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
		}
	}
	return want, nil
}

func (b *broker) subscribe(ctx context.Context, want map[Collection]bool, initial Snapshot) <-chan Snapshot {
	sub := &subscriber{ch: make(chan Snapshot, 1), want: want}
	sub.ch <- initial

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	if initial.Version > b.last {
		b.last = initial.Version
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		close(sub.ch)
		b.mu.Unlock()
	}()

	return sub.ch
}

func (b *broker) publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if snap.Version < b.last {
		return
	}
	b.last = snap.Version

	for sub := range b.subs {
		part := snap.only(sub.want)
		if len(part.Collections) == 0 {
			continue
		}
		select {
		case pending := <-sub.ch:
			part = part.mergeOlder(pending)
		default:
		}
		sub.ch <- part
	}
}

// setMembers lists want in collection order.
func setMembers(want map[Collection]bool) []Collection {
	var out []Collection
	for _, c := range AllCollections {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}

// wanted returns the collections among cs that at least one subscriber wants.
func (b *broker) wanted(cs []Collection) []Collection {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Collection
	for _, c := range cs {
		for sub := range b.subs {
			if sub.want[c] {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
