package resend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/port/notifier"
)

func newTestNotifier(t *testing.T, h http.HandlerFunc) *Notifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, From: "Studio <invites@studio.test>", APIKey: func() string { return "re_test" }})
}

func TestSend(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer re_test" {
			t.Errorf("authorization = %q", got)
		}
		var body sendRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if len(body.To) != 1 || body.To[0] != "ada@example.com" || body.Subject != "Invite" {
			t.Errorf("unexpected body %+v", body)
		}
		if len(body.Attachments) != 1 {
			t.Fatalf("attachments = %d", len(body.Attachments))
		}
		raw, err := base64.StdEncoding.DecodeString(body.Attachments[0].Content)
		if err != nil || string(raw) != "BEGIN:VCALENDAR" {
			t.Errorf("attachment content = %q, %v", raw, err)
		}
		if len(body.Tags) != 2 || body.Tags[0].Name != "kind" {
			t.Errorf("tags = %+v", body.Tags)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	})

	id, err := n.Send(context.Background(), notifier.Message{
		To:      "ada@example.com",
		Subject: "Invite",
		HTML:    "<p>hi</p>",
		Attachments: []notifier.Attachment{
			{Filename: "invite.ics", ContentType: "text/calendar", Content: []byte("BEGIN:VCALENDAR")},
		},
		Tags: map[string]string{"meeting": "m-1", "kind": "invite"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "email_1" {
		t.Errorf("id = %q", id)
	}
}

func TestSendProviderError(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`))
	})

	_, err := n.Send(context.Background(), notifier.Message{To: "bad", Subject: "x"})
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Message != "Invalid to field" || ue.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unexpected error %+v", ue)
	}
}

func TestRegistered(t *testing.T) {
	if _, err := notifier.New("resend", map[string]string{}); !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	n, err := notifier.New("resend", map[string]string{"api_key": "k", "from": "a@b.c", "timeout": "3s"})
	if err != nil {
		t.Fatal(err)
	}
	if n.Name() != "resend" || !n.Capabilities().Attachments {
		t.Errorf("unexpected notifier %s %+v", n.Name(), n.Capabilities())
	}
}
