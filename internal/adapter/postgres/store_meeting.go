package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/meeting"
)

const meetingColumns = `id, tenant_id, code, title, description, host_id, host_name, host_email,
	participants, scheduled_at, duration_minutes, join_url, status, created_at, updated_at`

func scanMeeting(row scannable) (meeting.Meeting, error) {
	var m meeting.Meeting
	var participants []byte
	err := row.Scan(
		&m.ID, &m.TenantID, &m.Code, &m.Title, &m.Description, &m.HostID, &m.HostName, &m.HostEmail,
		&participants, &m.ScheduledAt, &m.DurationMinutes, &m.JoinURL, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, err
	}
	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &m.Participants); err != nil {
			return m, fmt.Errorf("decode participants: %w", err)
		}
	}
	if m.Participants == nil {
		m.Participants = meeting.Participants{}
	}
	return m, nil
}

func marshalParticipants(ps meeting.Participants) ([]byte, error) {
	if ps == nil {
		ps = meeting.Participants{}
	}
	return json.Marshal(ps)
}

func (s *Store) CreateMeeting(ctx context.Context, m *meeting.Meeting) (*meeting.Meeting, error) {
	participants, err := marshalParticipants(m.Participants)
	if err != nil {
		return nil, fmt.Errorf("marshal participants: %w", err)
	}

	out, err := scanMeeting(s.pool.QueryRow(ctx,
		`INSERT INTO meetings (tenant_id, code, title, description, host_id, host_name, host_email,
		                       participants, scheduled_at, duration_minutes, join_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+meetingColumns,
		tenantFromCtx(ctx), m.Code, m.Title, m.Description, m.HostID, m.HostName, m.HostEmail,
		participants, nullTime(m.ScheduledAt), m.DurationMinutes, m.JoinURL, m.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create meeting code %s: %w", m.Code, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	return &out, nil
}

func (s *Store) GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error) {
	m, err := scanMeeting(s.pool.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE id = $1 AND tenant_id = $2`,
		id, tenantFromCtx(ctx)))
	if err != nil {
		return nil, notFoundWrap(err, "get meeting %s", id)
	}
	return &m, nil
}

// ListMeetings returns the tenant's meetings, scheduled ones first by start
// time, unscheduled ones last.
func (s *Store) ListMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+meetingColumns+` FROM meetings
		 WHERE tenant_id = $1
		 ORDER BY scheduled_at ASC NULLS LAST, created_at ASC, id ASC`,
		tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var out []meeting.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) UpdateMeeting(ctx context.Context, m *meeting.Meeting, expectedUpdatedAt time.Time) (*meeting.Meeting, error) {
	participants, err := marshalParticipants(m.Participants)
	if err != nil {
		return nil, fmt.Errorf("marshal participants: %w", err)
	}

	tid := tenantFromCtx(ctx)
	out, err := scanMeeting(s.pool.QueryRow(ctx,
		`UPDATE meetings
		 SET title = $3, description = $4, participants = $5, scheduled_at = $6,
		     duration_minutes = $7, status = $8, updated_at = clock_timestamp()
		 WHERE id = $1 AND tenant_id = $2 AND updated_at = $9
		 RETURNING `+meetingColumns,
		m.ID, tid, m.Title, m.Description, participants, nullTime(m.ScheduledAt),
		m.DurationMinutes, m.Status, expectedUpdatedAt))
	if err == nil {
		return &out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update meeting %s: %w", m.ID, err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM meetings WHERE id = $1 AND tenant_id = $2)`, m.ID, tid,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("update meeting %s: %w", m.ID, err)
	}
	if exists {
		return nil, fmt.Errorf("update meeting %s: modified concurrently: %w", m.ID, domain.ErrConflict)
	}
	return nil, fmt.Errorf("update meeting %s: %w", m.ID, domain.ErrNotFound)
}

func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM meetings WHERE id = $1 AND tenant_id = $2`, id, tenantFromCtx(ctx))
	return execExpectOne(tag, err, "delete meeting %s", id)
}
