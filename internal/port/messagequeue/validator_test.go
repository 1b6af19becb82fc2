package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateMeetingChange(t *testing.T) {
	subject := TenantSubject(SubjectMeetingChanged, "t-1")
	data := []byte(`{"op":"insert","tenant_id":"t-1","meeting_id":"m-1","updated_at":"2026-01-01T00:00:00Z"}`)
	if err := Validate(subject, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTenantMismatch(t *testing.T) {
	subject := TenantSubject(SubjectNotificationCreated, "t-1")
	data := []byte(`{"notification_id":"n-1","tenant_id":"t-2","type":"info","title":"x"}`)
	err := Validate(subject, data)
	if err == nil || !strings.Contains(err.Error(), "tenant") {
		t.Fatalf("expected tenant mismatch error, got %v", err)
	}
}

func TestValidateMissingTenantToken(t *testing.T) {
	err := Validate(SubjectSubscriptionChanged, []byte(`{"tenant_id":"t-1"}`))
	if err == nil {
		t.Fatal("expected error for subject without tenant token")
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(TenantSubject(SubjectMeetingChanged, "t-1"), []byte(`{not valid json`))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected 'invalid JSON' error, got: %v", err)
	}
}

func TestValidateInvalidSchema(t *testing.T) {
	err := Validate(TenantSubject(SubjectMeetingChanged, "t-1"), []byte(`"just a string"`))
	if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected 'schema validation failed' error, got: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("audit.something", []byte(`{"any":"thing"}`)); err != nil {
		t.Fatalf("unknown subjects should pass: %v", err)
	}
}

func TestSplitTenant(t *testing.T) {
	prefix, tid := SplitTenant("meetings.changed.abc")
	if prefix != SubjectMeetingChanged || tid != "abc" {
		t.Errorf("got %q %q", prefix, tid)
	}
	prefix, tid = SplitTenant("meetings.changed")
	if prefix != SubjectMeetingChanged || tid != "" {
		t.Errorf("got %q %q", prefix, tid)
	}
}
