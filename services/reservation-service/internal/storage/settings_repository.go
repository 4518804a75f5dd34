package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/services/reservation-service/internal/cleaning"
)

// SettingsRepository reads and writes the per-organization scheduling
// settings. Today that is just the cleaning policy flag.
type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// GetCleaningPolicy returns the organization's cleaning policy. Organizations
// without a settings row have cleaning off.
func (r *SettingsRepository) GetCleaningPolicy(ctx context.Context, orgID string) (cleaning.Policy, error) {
	var enabled bool
	err := r.pool.QueryRow(ctx, `
		SELECT cleaning_enabled FROM org_settings WHERE org_id = $1
	`, orgID).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return cleaning.Policy{}, nil
	}
	if err != nil {
		return cleaning.Policy{}, err
	}
	return cleaning.Policy{Enabled: enabled}, nil
}

// SetCleaning flips the cleaning flag and reports whether the stored value
// actually changed. The conditional update makes the false->true transition
// observable exactly once even under concurrent toggles, which is what gates
// the retroactive scan.
func (r *SettingsRepository) SetCleaning(ctx context.Context, tx pgx.Tx, orgID string, enabled bool) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO org_settings (org_id, cleaning_enabled)
		VALUES ($1, $2)
		ON CONFLICT (org_id) DO UPDATE
		SET cleaning_enabled = EXCLUDED.cleaning_enabled,
			updated_at = now()
		WHERE org_settings.cleaning_enabled IS DISTINCT FROM EXCLUDED.cleaning_enabled
	`, orgID, enabled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
