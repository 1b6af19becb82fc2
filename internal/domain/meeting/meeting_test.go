package meeting

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/Strob0t/Studio/internal/domain"
)

func TestParseParticipant(t *testing.T) {
	tests := []struct {
		in       string
		wantKind Kind
		want     string
		wantErr  bool
	}{
		{"Alice@Example.com", KindEmail, "alice@example.com", false},
		{" bob <bob@example.com> ", KindEmail, "bob@example.com", false},
		{"+91 98765-43210", KindPhone, "+919876543210", false},
		{"(555) 123.4567", KindPhone, "5551234567", false},
		{"not@valid@", "", "", true},
		{"12345", "", "", true},
		{"call me", "", "", true},
		{"98+765", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseParticipant(tt.in)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v (%+v)", err, p)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.Kind != tt.wantKind || p.Value != tt.want {
				t.Errorf("got %+v, want %s %q", p, tt.wantKind, tt.want)
			}
		})
	}
}

func TestParseParticipantsDedupAndSplit(t *testing.T) {
	ps, err := ParseParticipants([]string{"a@x.com", "A@X.com", "+15551234567", "b@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 3 {
		t.Fatalf("expected 3 participants, got %d: %+v", len(ps), ps)
	}
	emails, phones := Split(ps)
	if len(emails) != 2 || len(phones) != 1 {
		t.Fatalf("split = %d emails, %d phones", len(emails), len(phones))
	}
	if emails[0].Value != "a@x.com" || emails[1].Value != "b@x.com" {
		t.Errorf("order not preserved: %+v", emails)
	}
}

func TestParticipantsUnmarshalMixed(t *testing.T) {
	var ps Participants
	if err := json.Unmarshal([]byte(`["a@x.com", {"kind":"phone","value":"+15551234567"}]`), &ps); err != nil {
		t.Fatal(err)
	}
	if len(ps) != 2 || ps[0].Kind != KindEmail || ps[1].Kind != KindPhone {
		t.Fatalf("got %+v", ps)
	}
}

func TestCheckTransition(t *testing.T) {
	all := []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusScheduled, StatusInProgress}: true,
		{StatusScheduled, StatusCompleted}:  true,
		{StatusScheduled, StatusCancelled}:  true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			err := CheckTransition(from, to)
			want := from == to || allowed[[2]Status{from, to}]
			if (err == nil) != want {
				t.Errorf("CheckTransition(%s, %s) = %v, want allowed=%v", from, to, err, want)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		}
	}
}

func TestCreateRequestNormalize(t *testing.T) {
	req := CreateRequest{Title: "  Standup ", Participants: []string{"a@x.com"}}
	ps, err := req.Normalize(30)
	if err != nil {
		t.Fatal(err)
	}
	if req.Title != "Standup" || req.DurationMinutes != 30 || len(ps) != 1 {
		t.Errorf("normalized = %+v, %+v", req, ps)
	}

	bad := []CreateRequest{
		{Title: ""},
		{Title: strings.Repeat("x", 201)},
		{Title: "ok", DurationMinutes: -5},
		{Title: "ok", DurationMinutes: 2000},
		{Title: "ok", Participants: []string{"nope"}},
	}
	for i, r := range bad {
		if _, err := r.Normalize(30); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestUpdateRequestApply(t *testing.T) {
	title := "Retro"
	dur := 45
	m := &Meeting{Title: "Standup", Status: StatusScheduled, DurationMinutes: 30}
	if err := (&UpdateRequest{Title: &title, DurationMinutes: &dur}).Apply(m); err != nil {
		t.Fatal(err)
	}
	if m.Title != "Retro" || m.DurationMinutes != 45 {
		t.Errorf("got %+v", m)
	}

	m.Status = StatusCompleted
	if err := (&UpdateRequest{Title: &title}).Apply(m); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("terminal meeting must not be editable, got %v", err)
	}
}

func TestNewCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z2-9]{3}-[a-z2-9]{4}-[a-z2-9]{3}$`)
	seen := map[string]bool{}
	for range 100 {
		c, err := NewCode()
		if err != nil {
			t.Fatal(err)
		}
		if !pattern.MatchString(c) {
			t.Fatalf("code %q does not match format", c)
		}
		seen[c] = true
	}
	if len(seen) < 95 {
		t.Errorf("codes are not random enough: %d unique of 100", len(seen))
	}
	if got := JoinURL("https://meet.example.com/join/", "abc-defg-hij"); got != "https://meet.example.com/join/abc-defg-hij" {
		t.Errorf("JoinURL = %q", got)
	}
}

func at(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func TestSortUnscheduledLast(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := []Meeting{
		{ID: "u1", CreatedAt: base},
		{ID: "late", ScheduledAt: at("2026-03-01T10:00:00Z"), CreatedAt: base},
		{ID: "early", ScheduledAt: at("2026-02-01T10:00:00Z"), CreatedAt: base.Add(time.Hour)},
		{ID: "u0", CreatedAt: base.Add(-time.Hour)},
	}
	Sort(ms)
	var ids []string
	for _, m := range ms {
		ids = append(ids, m.ID)
	}
	if got := strings.Join(ids, ","); got != "early,late,u0,u1" {
		t.Errorf("order = %s", got)
	}
}

func TestApplyChange(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Meeting{ID: "a", Title: "A", ScheduledAt: at("2026-02-01T10:00:00Z"), UpdatedAt: t0}
	b := Meeting{ID: "b", Title: "B", ScheduledAt: at("2026-02-02T10:00:00Z"), UpdatedAt: t0}

	list := Apply(nil, Change{Op: OpInsert, MeetingID: "b", Meeting: &b})
	list = Apply(list, Change{Op: OpInsert, MeetingID: "a", Meeting: &a})
	list = Apply(list, Change{Op: OpInsert, MeetingID: "a", Meeting: &a})
	if len(list) != 2 || list[0].ID != "a" {
		t.Fatalf("insert not idempotent or unsorted: %+v", list)
	}

	stale := a
	stale.Title = "stale"
	stale.UpdatedAt = t0.Add(-time.Minute)
	list = Apply(list, Change{Op: OpUpdate, MeetingID: "a", Meeting: &stale})
	if list[0].Title != "A" {
		t.Fatalf("stale update applied: %+v", list[0])
	}

	fresh := a
	fresh.Title = "A2"
	fresh.ScheduledAt = at("2026-03-01T10:00:00Z")
	fresh.UpdatedAt = t0.Add(time.Minute)
	list = Apply(list, Change{Op: OpUpdate, MeetingID: "a", Meeting: &fresh})
	if list[1].ID != "a" || list[1].Title != "A2" {
		t.Fatalf("update not applied or not resorted: %+v", list)
	}

	list = Apply(list, Change{Op: OpDelete, MeetingID: "a"})
	list = Apply(list, Change{Op: OpDelete, MeetingID: "a"})
	if len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("delete not idempotent: %+v", list)
	}
}

func TestCalendar(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &Meeting{
		ID:              "m-1",
		Title:           "Quarterly review",
		Description:     "Numbers",
		HostName:        "Host",
		HostEmail:       "host@example.com",
		ScheduledAt:     at("2026-02-01T10:00:00Z"),
		DurationMinutes: 90,
		JoinURL:         "https://meet.example.com/j/abc-defg-hij",
		Status:          StatusScheduled,
		Participants:    Participants{{Kind: KindEmail, Value: "a@x.com"}, {Kind: KindPhone, Value: "+15551234567"}},
		CreatedAt:       created,
		UpdatedAt:       created,
	}

	out, err := Calendar(m, created)
	if err != nil {
		t.Fatal(err)
	}
	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a valid calendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if got := events[0].GetProperty(ics.ComponentPropertySummary).Value; got != "Quarterly review" {
		t.Errorf("summary = %q", got)
	}
	if !strings.Contains(out, "DTEND:20260201T113000Z") {
		t.Errorf("end time missing in\n%s", out)
	}
	attendees := events[0].Attendees()
	if len(attendees) != 1 || attendees[0].Email() != "a@x.com" {
		t.Errorf("expected only the email participant as attendee, got %d", len(attendees))
	}

	m.ScheduledAt = nil
	if _, err := Calendar(m, created); !errors.Is(err, ErrUnscheduled) || !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrUnscheduled, got %v", err)
	}
}
