package meeting

import "time"

// Op tags a change event.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is published on every meeting mutation. Insert and update carry the
// full row; delete carries only the id.
type Change struct {
	Op        Op        `json:"op"`
	TenantID  string    `json:"tenant_id"`
	MeetingID string    `json:"meeting_id"`
	UpdatedAt time.Time `json:"updated_at"`
	Meeting   *Meeting  `json:"meeting,omitempty"`
	// Origin names the feed instance that produced the change.
	Origin string `json:"origin,omitempty"`
}

// Apply patches a tenant's meeting list with c and returns the new list.
// It is idempotent: re-applying the same change yields the same list, and an
// update older than the cached row is ignored. The result keeps Sort order.
func Apply(list []Meeting, c Change) []Meeting {
	idx := -1
	for i := range list {
		if list[i].ID == c.MeetingID {
			idx = i
			break
		}
	}

	switch c.Op {
	case OpDelete:
		if idx < 0 {
			return list
		}
		out := make([]Meeting, 0, len(list)-1)
		out = append(out, list[:idx]...)
		return append(out, list[idx+1:]...)
	case OpInsert, OpUpdate:
		if c.Meeting == nil {
			return list
		}
		out := make([]Meeting, len(list), len(list)+1)
		copy(out, list)
		if idx >= 0 {
			if out[idx].UpdatedAt.After(c.Meeting.UpdatedAt) {
				return list
			}
			out[idx] = *c.Meeting
		} else {
			out = append(out, *c.Meeting)
		}
		Sort(out)
		return out
	}
	return list
}
