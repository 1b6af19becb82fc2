package meeting

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Strob0t/Studio/internal/domain"
)

// Kind tags a participant contact.
type Kind string

const (
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
)

// Participant is an invitee reachable over exactly one channel. The kind is
// decided once by ParseParticipant and never re-inferred downstream.
type Participant struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

func (p Participant) String() string { return p.Value }

// ParseParticipant classifies raw input: anything containing "@" is an email
// address, everything else must be a phone number of 7 to 15 digits with an
// optional leading "+". Separators (spaces, dashes, dots, parens) are dropped.
func ParseParticipant(raw string) (Participant, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Participant{}, domain.Validationf("participant must not be empty")
	}
	if strings.Contains(s, "@") {
		addr, err := mail.ParseAddress(s)
		if err != nil {
			return Participant{}, domain.Validationf("invalid email %q", s)
		}
		return Participant{Kind: KindEmail, Value: strings.ToLower(addr.Address)}, nil
	}
	return parsePhone(s)
}

func parsePhone(s string) (Participant, error) {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return Participant{}, domain.Validationf("invalid phone number %q", s)
		}
	}
	v := b.String()
	digits := len(strings.TrimPrefix(v, "+"))
	if digits < 7 || digits > 15 {
		return Participant{}, domain.Validationf("invalid phone number %q", s)
	}
	return Participant{Kind: KindPhone, Value: v}, nil
}

// ParseParticipants parses and de-duplicates raw entries, preserving order.
func ParseParticipants(raw []string) ([]Participant, error) {
	out := make([]Participant, 0, len(raw))
	seen := make(map[Participant]bool, len(raw))
	for i, r := range raw {
		p, err := ParseParticipant(r)
		if err != nil {
			return nil, fmt.Errorf("participants[%d]: %w", i, err)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// Split partitions participants by channel, preserving order.
func Split(ps []Participant) (emails, phones []Participant) {
	for _, p := range ps {
		if p.Kind == KindEmail {
			emails = append(emails, p)
		} else {
			phones = append(phones, p)
		}
	}
	return emails, phones
}

// Participants is the persisted list. It accepts both tagged objects and
// bare strings when decoding so old payloads keep working.
type Participants []Participant

// UnmarshalJSON decodes tagged objects or raw strings.
func (ps *Participants) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Participants, 0, len(raw))
	for _, r := range raw {
		if len(r) > 0 && r[0] == '"' {
			var s string
			if err := json.Unmarshal(r, &s); err != nil {
				return err
			}
			p, err := ParseParticipant(s)
			if err != nil {
				return err
			}
			out = append(out, p)
			continue
		}
		var p Participant
		if err := json.Unmarshal(r, &p); err != nil {
			return err
		}
		out = append(out, p)
	}
	*ps = out
	return nil
}
