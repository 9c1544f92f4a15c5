package session

import "time"

// BatchItem is one candidate proxy shown to the user.
type BatchItem struct {
	ID          uint64 `json:"id"`
	ProxyString string `json:"proxy_string"`
}

// Batch is the set of candidates returned by one allocation. Nothing in it is
// reserved; the claim step decides ownership.
type Batch struct {
	ID        string      `json:"batch_id"`
	UserID    uint64      `json:"user_id"`
	Items     []BatchItem `json:"items"`
	Claimed   []uint64    `json:"claimed,omitempty"`
	Dropped   []uint64    `json:"dropped,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Size is the number of candidates the batch started with.
func (b *Batch) Size() int {
	return len(b.Items)
}

// Contains reports whether id is one of the batch candidates.
func (b *Batch) Contains(id uint64) bool {
	for _, item := range b.Items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// Item returns the candidate with id.
func (b *Batch) Item(id uint64) (BatchItem, bool) {
	for _, item := range b.Items {
		if item.ID == id {
			return item, true
		}
	}
	return BatchItem{}, false
}

func (b *Batch) settled(id uint64) bool {
	for _, c := range b.Claimed {
		if c == id {
			return true
		}
	}
	for _, d := range b.Dropped {
		if d == id {
			return true
		}
	}
	return false
}

// IsOutstanding reports whether id is in the batch and neither claimed nor dropped.
func (b *Batch) IsOutstanding(id uint64) bool {
	return b.Contains(id) && !b.settled(id)
}

// Outstanding returns candidates that are neither claimed nor dropped, in batch order.
func (b *Batch) Outstanding() []BatchItem {
	out := make([]BatchItem, 0, len(b.Items))
	for _, item := range b.Items {
		if !b.settled(item.ID) {
			out = append(out, item)
		}
	}
	return out
}

// OutstandingIDs returns the ids of Outstanding.
func (b *Batch) OutstandingIDs() []uint64 {
	items := b.Outstanding()
	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// MarkClaimed records a successful claim.
func (b *Batch) MarkClaimed(id uint64) {
	if b.IsOutstanding(id) {
		b.Claimed = append(b.Claimed, id)
	}
}

// Drop removes id from the outstanding set without counting it as claimed.
func (b *Batch) Drop(id uint64) {
	if b.IsOutstanding(id) {
		b.Dropped = append(b.Dropped, id)
	}
}

// Done reports whether no candidates remain outstanding.
func (b *Batch) Done() bool {
	return len(b.Outstanding()) == 0
}
