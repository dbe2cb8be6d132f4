package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
)

// Static serves a fixed set of profiles, for local runs without the profile
// service or a database.
type Static struct {
	profiles map[string]availability.Profile
}

func NewStatic(profiles ...availability.Profile) *Static {
	s := &Static{profiles: make(map[string]availability.Profile, len(profiles))}
	for _, p := range profiles {
		s.profiles[p.ProviderID] = p
	}
	return s
}

type fileProfile struct {
	ProviderID   string          `json:"provider_id"`
	HourlyRate   int64           `json:"hourly_rate"`
	Availability json.RawMessage `json:"availability"`
}

// LoadFile reads a JSON array of {"provider_id", "hourly_rate", "availability"}.
func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []fileProfile
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	profiles := make([]availability.Profile, 0, len(entries))
	for _, e := range entries {
		if e.ProviderID == "" {
			return nil, fmt.Errorf("parse %s: profile without provider_id", path)
		}
		profiles = append(profiles, availability.Profile{
			ProviderID:  e.ProviderID,
			HourlyRate:  e.HourlyRate,
			RawTemplate: []byte(e.Availability),
		})
	}
	return NewStatic(profiles...), nil
}

func (s *Static) Profile(_ context.Context, providerID string) (availability.Profile, error) {
	p, ok := s.profiles[providerID]
	if !ok {
		return availability.Profile{}, availability.ErrProviderNotFound
	}
	return p, nil
}
