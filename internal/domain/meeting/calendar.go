package meeting

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

const productID = "-//Studio//Meetings//EN"

// Calendar renders m as an RFC 5545 invitation. Unscheduled meetings have no
// calendar form and return ErrUnscheduled.
func Calendar(m *Meeting, now time.Time) (string, error) {
	if m.ScheduledAt == nil {
		return "", ErrUnscheduled
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId(productID)

	ev := cal.AddEvent(m.ID + "@studio")
	ev.SetDtStampTime(now.UTC())
	ev.SetCreatedTime(m.CreatedAt.UTC())
	ev.SetModifiedAt(m.UpdatedAt.UTC())
	ev.SetStartAt(m.ScheduledAt.UTC())
	ev.SetEndAt(m.EndsAt().UTC())
	ev.SetSummary(m.Title)
	if m.Description != "" {
		ev.SetDescription(m.Description)
	}
	ev.SetURL(m.JoinURL)
	ev.SetLocation(m.JoinURL)
	if m.Status == StatusCancelled {
		ev.SetStatus(ics.ObjectStatusCancelled)
	} else {
		ev.SetStatus(ics.ObjectStatusConfirmed)
	}
	if m.HostEmail != "" {
		ev.SetOrganizer("mailto:"+m.HostEmail, ics.WithCN(m.HostName))
	}
	for _, p := range m.Participants {
		if p.Kind != KindEmail {
			continue
		}
		ev.AddAttendee("mailto:"+p.Value,
			ics.ParticipationStatusNeedsAction,
			ics.ParticipationRoleReqParticipant,
			ics.WithRSVP(true),
		)
	}

	return cal.Serialize(), nil
}
