package tenant

import (
	"testing"

	"github.com/Strob0t/Studio/internal/domain/plan"
)

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr bool
	}{
		{"valid", CreateRequest{Name: "Acme", Slug: "acme"}, false},
		{"alias plan", CreateRequest{Name: "Acme", Slug: "acme", Plan: "pro"}, false},
		{"missing name", CreateRequest{Slug: "acme"}, true},
		{"bad slug", CreateRequest{Name: "Acme", Slug: "Acme Inc"}, true},
		{"leading dash", CreateRequest{Name: "Acme", Slug: "-acme"}, true},
		{"unknown plan", CreateRequest{Name: "Acme", Slug: "acme", Plan: "gold"}, true},
		{"negative trial", CreateRequest{Name: "Acme", Slug: "acme", TrialDays: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateRequestDefaultsPlan(t *testing.T) {
	req := CreateRequest{Name: "Acme", Slug: "acme"}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if req.Plan != plan.Free {
		t.Errorf("expected free plan, got %q", req.Plan)
	}

	req = CreateRequest{Name: "Acme", Slug: "acme", Plan: "pro"}
	_ = req.Validate()
	if req.Plan != plan.Professional {
		t.Errorf("expected professional, got %q", req.Plan)
	}
}
