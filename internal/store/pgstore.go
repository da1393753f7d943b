package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bbrooks37/vscode-mssql/model"
)

// PgConnectionStore is a PostgreSQL-backed ConnectionStore using pgx/v5.
type PgConnectionStore struct {
	pool *pgxpool.Pool
}

// NewPgConnectionStore creates a new PostgreSQL connection store.
func NewPgConnectionStore(pool *pgxpool.Pool) *PgConnectionStore {
	return &PgConnectionStore{pool: pool}
}

// LoadAll returns saved profiles sorted by name, plus recents when requested.
func (s *PgConnectionStore) LoadAll(ctx context.Context, includeRecents bool) ([]model.ListedProfile, []model.ListedProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT profile FROM connection_profiles
		ORDER BY name ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var saved []model.ListedProfile
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, nil, fmt.Errorf("scan profile: %w", err)
		}
		profile, err := unmarshalProfile(payload)
		if err != nil {
			return nil, nil, err
		}
		saved = append(saved, model.ListedProfile{Profile: profile})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if !includeRecents {
		return saved, nil, nil
	}

	recentRows, err := s.pool.Query(ctx, `
		SELECT profile FROM recent_connections
		ORDER BY used_at DESC
		LIMIT $1`, maxRecents)
	if err != nil {
		return nil, nil, fmt.Errorf("query recents: %w", err)
	}
	defer recentRows.Close()

	var recent []model.ListedProfile
	for recentRows.Next() {
		var payload []byte
		if err := recentRows.Scan(&payload); err != nil {
			return nil, nil, fmt.Errorf("scan recent: %w", err)
		}
		profile, err := unmarshalProfile(payload)
		if err != nil {
			return nil, nil, err
		}
		recent = append(recent, model.ListedProfile{Profile: profile, Recent: true})
	}
	return saved, recent, recentRows.Err()
}

// LookupPassword returns the stored password for the named profile.
func (s *PgConnectionStore) LookupPassword(ctx context.Context, profileName string) (string, error) {
	var password string
	err := s.pool.QueryRow(ctx, `
		SELECT password FROM connection_secrets
		WHERE name = $1`, profileName,
	).Scan(&password)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query secret: %w", err)
	}
	return password, nil
}

// Save upserts the profile under its profile name. The password is written to
// the credential table when savePassword is set, and removed otherwise.
func (s *PgConnectionStore) Save(ctx context.Context, profile *model.ConnectionProfile) error {
	name := profile.GetString(model.FieldProfileName)
	if name == "" {
		return fmt.Errorf("store: profile has no name")
	}

	stored := profile.Clone()
	password := stored.GetString(model.FieldPassword)
	stored.Clear(model.FieldPassword)

	payload, err := json.Marshal(stored.Values())
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO connection_profiles (name, profile, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET profile = $2, updated_at = $3`,
		name, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	if profile.GetBool(model.FieldSavePassword) && password != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO connection_secrets (name, password)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET password = $2`,
			name, password,
		)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM connection_secrets WHERE name = $1`, name)
	}
	if err != nil {
		return fmt.Errorf("store secret: %w", err)
	}

	return tx.Commit(ctx)
}

// RemoveProfile deletes the named profile and its stored credential.
func (s *PgConnectionStore) RemoveProfile(ctx context.Context, profileName string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin remove: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM connection_secrets WHERE name = $1`, profileName); err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM connection_profiles WHERE name = $1`, profileName)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("profile %q not found", profileName))
	}

	return tx.Commit(ctx)
}

// AddRecent prepends the profile to the recently-used list.
func (s *PgConnectionStore) AddRecent(ctx context.Context, profile *model.ConnectionProfile) error {
	stored := profile.Clone()
	stored.Clear(model.FieldPassword)

	payload, err := json.Marshal(stored.Values())
	if err != nil {
		return fmt.Errorf("marshal recent: %w", err)
	}
	key := recentKey(stored)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin recent: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM recent_connections WHERE conn_key = $1`, key); err != nil {
		return fmt.Errorf("dedupe recent: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO recent_connections (id, conn_key, profile, used_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), key, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert recent: %w", err)
	}

	// Trim entries beyond the cap.
	_, err = tx.Exec(ctx, `
		DELETE FROM recent_connections
		WHERE id NOT IN (
			SELECT id FROM recent_connections
			ORDER BY used_at DESC
			LIMIT $1
		)`, maxRecents)
	if err != nil {
		return fmt.Errorf("trim recents: %w", err)
	}

	return tx.Commit(ctx)
}

// RemoveRecent deletes matching entries from the recently-used list.
func (s *PgConnectionStore) RemoveRecent(ctx context.Context, profile *model.ConnectionProfile) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM recent_connections WHERE conn_key = $1`, recentKey(profile))
	if err != nil {
		return fmt.Errorf("delete recent: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *PgConnectionStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func unmarshalProfile(payload []byte) (*model.ConnectionProfile, error) {
	var values map[string]any
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return model.ProfileFromValues(values), nil
}
