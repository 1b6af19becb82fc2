package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/Studio/internal/domain/meeting"
	"github.com/Strob0t/Studio/internal/service"
)

const meetingNotFound = "meeting not found"

// ListMeetings handles GET /api/v1/meetings
func (h *Handlers) ListMeetings(w http.ResponseWriter, r *http.Request) {
	listOf(h.Meetings.List, meetingNotFound)(w, r)
}

// CreateMeeting handles POST /api/v1/meetings
func (h *Handlers) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	withBody(h.bodyLimit(), http.StatusCreated, func(ctx context.Context, _ string, req meeting.CreateRequest) (*meeting.Meeting, error) {
		return h.Meetings.Create(ctx, req)
	}, meetingNotFound)(w, r)
}

// GetMeeting handles GET /api/v1/meetings/{id}
func (h *Handlers) GetMeeting(w http.ResponseWriter, r *http.Request) {
	byID(h.Meetings.Get, meetingNotFound)(w, r)
}

// UpdateMeeting handles PUT /api/v1/meetings/{id}
func (h *Handlers) UpdateMeeting(w http.ResponseWriter, r *http.Request) {
	withBody(h.bodyLimit(), http.StatusOK, h.Meetings.Update, meetingNotFound)(w, r)
}

// UpdateMeetingStatus handles PUT /api/v1/meetings/{id}/status
func (h *Handlers) UpdateMeetingStatus(w http.ResponseWriter, r *http.Request) {
	withBody(h.bodyLimit(), http.StatusOK, func(ctx context.Context, id string, req meeting.StatusUpdate) (*meeting.Meeting, error) {
		return h.Meetings.UpdateStatus(ctx, id, req.Status)
	}, meetingNotFound)(w, r)
}

// DeleteMeeting handles DELETE /api/v1/meetings/{id}
func (h *Handlers) DeleteMeeting(w http.ResponseWriter, r *http.Request) {
	deleteByID(h.Meetings.Delete, meetingNotFound)(w, r)
}

// MeetingCalendar handles GET /api/v1/meetings/{id}/calendar.ics
func (h *Handlers) MeetingCalendar(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	ics, err := h.Meetings.Calendar(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, meetingNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meeting-`+id+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics))
}

// InviteMeeting handles POST /api/v1/meetings/{id}/invites
func (h *Handlers) InviteMeeting(w http.ResponseWriter, r *http.Request) {
	res, err := h.Meetings.Invite(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, meetingNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SendInvites handles POST /api/v1/meetings/invites
func (h *Handlers) SendInvites(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.InviteRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	res, err := h.Invites.Dispatch(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, meetingNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type participantCheckRequest struct {
	Current int `json:"current"`
}

// CheckParticipant handles POST /api/v1/quota/participants/check.
// A draft at the limit gets the structured quota rejection.
func (h *Handlers) CheckParticipant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[participantCheckRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	usage, err := h.Quota.CheckAdd(r.Context(), req.Current)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
