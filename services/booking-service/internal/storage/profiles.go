package storage

import (
	"context"

	"github.com/md-rashed-zaman/lexbook/libs/db"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
)

// ProfileRepository reads the booking-relevant columns of provider_profiles.
// The profile itself is owned and written elsewhere.
type ProfileRepository struct {
	pool *db.Pool
}

func NewProfileRepository(pool *db.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) Profile(ctx context.Context, providerID string) (availability.Profile, error) {
	var p availability.Profile
	var raw string
	err := r.pool.QueryRow(ctx, `
		SELECT provider_id, hourly_rate, COALESCE(availability, '')
		FROM provider_profiles
		WHERE provider_id = $1
	`, providerID).Scan(&p.ProviderID, &p.HourlyRate, &raw)
	if err != nil {
		if IsNotFound(err) {
			return availability.Profile{}, availability.ErrProviderNotFound
		}
		return availability.Profile{}, err
	}
	p.RawTemplate = []byte(raw)
	return p, nil
}
