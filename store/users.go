package store

import (
	"context"
	"fmt"

	"github.com/padraicbc/raceflow/models"
)

// UserByUsername loads an ops API user.
func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().Model(user).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", username, err)
	}
	return user, nil
}

// SaveUser creates or updates an ops API user.
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	_, err := s.db.NewInsert().Model(user).
		On("CONFLICT (username) DO UPDATE SET password = EXCLUDED.password").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.Username, err)
	}
	return nil
}
