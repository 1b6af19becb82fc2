package notifier

import (
	"context"
	"slices"
	"testing"
)

type stubNotifier struct{ from string }

func (stubNotifier) Name() string               { return "stub" }
func (stubNotifier) Capabilities() Capabilities { return Capabilities{HTML: true} }
func (stubNotifier) Send(context.Context, Message) (string, error) {
	return "msg-1", nil
}

func TestRegistry(t *testing.T) {
	Register("stub-test", func(cfg map[string]string) (Notifier, error) {
		if cfg["from"] == "" {
			return nil, ErrNotConfigured
		}
		return stubNotifier{from: cfg["from"]}, nil
	})

	if !slices.Contains(Available(), "stub-test") {
		t.Fatalf("stub-test not in %v", Available())
	}
	if _, err := New("stub-test", nil); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	n, err := New("stub-test", map[string]string{"from": "a@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	if n.Name() != "stub" {
		t.Errorf("name = %q", n.Name())
	}
	if _, err := New("  Stub-Test ", map[string]string{"from": "a@x.com"}); err != nil {
		t.Errorf("lookup should ignore case and spaces: %v", err)
	}
	if _, err := New("missing", nil); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("dup-test", func(map[string]string) (Notifier, error) { return stubNotifier{}, nil })
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register("dup-test", func(map[string]string) (Notifier, error) { return stubNotifier{}, nil })
}
