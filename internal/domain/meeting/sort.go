package meeting

import "sort"

// Sort orders meetings by scheduled time ascending with unscheduled meetings
// last, breaking ties by creation time then id.
func Sort(ms []Meeting) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		switch {
		case a.ScheduledAt == nil && b.ScheduledAt != nil:
			return false
		case a.ScheduledAt != nil && b.ScheduledAt == nil:
			return true
		case a.ScheduledAt != nil && !a.ScheduledAt.Equal(*b.ScheduledAt):
			return a.ScheduledAt.Before(*b.ScheduledAt)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
