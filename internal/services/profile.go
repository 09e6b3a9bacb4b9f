package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ecoshop/ecoshop-go/internal/db"
	"github.com/ecoshop/ecoshop-go/internal/metrics"
	"github.com/ecoshop/ecoshop-go/internal/models"
	"github.com/pkg/errors"
)

// ProfileService manages users' saved checkout defaults.
type ProfileService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewProfileService creates a new profile service
func NewProfileService(db *db.DB, metrics *metrics.AppMetrics) *ProfileService {
	return &ProfileService{
		db:      db,
		metrics: metrics,
	}
}

// EnsureProfile returns the user's profile, creating it with empty phone
// and default address when it does not exist yet. This is the explicit
// upsert called from read sites that need a profile to exist.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	profile, err := s.get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	start := time.Now()
	query := "INSERT INTO profiles (user_id, phone, default_address) VALUES (?, '', '')"
	_, err = s.db.ExecContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "INSERT", "profiles", query, start, err == nil)
	if err != nil {
		// Lost a create race; the row exists now.
		if strings.Contains(err.Error(), "Duplicate entry") {
			return s.get(ctx, userID)
		}
		return nil, errors.Wrap(err, "create profile")
	}

	return &models.Profile{UserID: userID}, nil
}

// UpdateProfile stores new phone and default address values, creating
// the profile row when needed.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, req *models.UpdateProfileRequest) (*models.Profile, error) {
	start := time.Now()
	query := `INSERT INTO profiles (user_id, phone, default_address) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE phone = VALUES(phone), default_address = VALUES(default_address)`
	_, err := s.db.ExecContext(ctx, query, userID, req.Phone, req.DefaultAddress)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "profiles", query, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "update profile")
	}

	return &models.Profile{
		UserID:         userID,
		Phone:          req.Phone,
		DefaultAddress: req.DefaultAddress,
	}, nil
}

func (s *ProfileService) get(ctx context.Context, userID int64) (*models.Profile, error) {
	start := time.Now()
	query := "SELECT user_id, phone, default_address FROM profiles WHERE user_id = ?"
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "profiles", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	return &profile, nil
}
