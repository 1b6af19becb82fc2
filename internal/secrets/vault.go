// Package secrets keeps provider credentials in memory and swaps them on
// reload without restarting the service.
package secrets

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Well-known secret keys. They are read from the environment and reloaded
// on SIGHUP; none of them may appear in YAML or logs.
const (
	PaymentKeySecret     = "RAZORPAY_KEY_SECRET"
	PaymentWebhookSecret = "RAZORPAY_WEBHOOK_SECRET"
	EmailAPIKey          = "RESEND_API_KEY"
	SMTPPassword         = "STUDIO_SMTP_PASSWORD"
	JWTSecret            = "STUDIO_JWT_SECRET"
)

// Keys lists every secret the service loads.
var Keys = []string{PaymentKeySecret, PaymentWebhookSecret, EmailAPIKey, SMTPPassword, JWTSecret}

// Required lists the secrets without which orders, webhooks or auth fail.
var Required = []string{PaymentKeySecret, PaymentWebhookSecret, JWTSecret}

// Loader returns the current secret values from their source.
type Loader func() (map[string]string, error)

// Vault serves the last successfully loaded snapshot. Readers never block
// on a reload.
type Vault struct {
	loader Loader
	reload sync.Mutex
	snap   atomic.Pointer[map[string]string]
}

// NewVault loads the initial snapshot; a loader failure is fatal here.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	v := &Vault{loader: loader}
	v.snap.Store(&vals)
	return v, nil
}

// Get returns the secret for key, or "" when it is not set.
func (v *Vault) Get(key string) string {
	return (*v.snap.Load())[key]
}

// Getter binds key so components see rotated values without holding the vault.
func (v *Vault) Getter(key string) func() string {
	return func() string { return v.Get(key) }
}

// Reload swaps in a fresh snapshot and returns the names of the keys whose
// value was added, changed or removed. On error the old snapshot stays.
func (v *Vault) Reload() ([]string, error) {
	v.reload.Lock()
	defer v.reload.Unlock()

	next, err := v.loader()
	if err != nil {
		return nil, fmt.Errorf("reload secrets: %w", err)
	}
	prev := *v.snap.Load()
	v.snap.Store(&next)

	var changed []string
	for k, val := range next {
		if old, ok := prev[k]; !ok || old != val {
			changed = append(changed, k)
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changed = append(changed, k)
		}
	}
	slices.Sort(changed)
	return changed, nil
}

// Loaded returns the sorted names of secrets that currently have a value.
func (v *Vault) Loaded() []string {
	return slices.Sorted(maps.Keys(*v.snap.Load()))
}

// Missing returns the keys among want that have no value.
func (v *Vault) Missing(want ...string) []string {
	snap := *v.snap.Load()
	var out []string
	for _, k := range want {
		if snap[k] == "" {
			out = append(out, k)
		}
	}
	return out
}
