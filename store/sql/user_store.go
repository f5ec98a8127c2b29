package sqlstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
	now  func() time.Time
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}
	return &UserStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// CreateUser inserts one row. A unique violation on email or external_id is
// returned as core.ErrUserAlreadyExists in a conflict envelope.
func (s *UserStore) CreateUser(ctx context.Context, in core.CreateUserInput) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	if err := in.Validate(); err != nil {
		return core.User{}, err
	}

	record := newUserRecord(in, s.now())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.WrapError(
				core.ErrUserAlreadyExists,
				goerrors.CategoryConflict,
				"sqlstore: user already exists",
				http.StatusConflict,
				core.ErrorUserExists,
				map[string]any{"external_id": record.ExternalID, "cause": err.Error()},
			)
		}
		return core.User{}, err
	}
	return record.toDomain(), nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.User{}, err
	}
	return record.toDomain(), nil
}

func (s *UserStore) GetByExternalID(ctx context.Context, externalID string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return core.User{}, core.BadInput("sqlstore: external id is required", nil)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("external_id", "=", externalID),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.User{}, err
	}
	if len(records) == 0 {
		return core.User{}, core.WrapError(
			core.ErrUserNotFound,
			goerrors.CategoryNotFound,
			"sqlstore: user not found",
			http.StatusNotFound,
			core.ErrorUserNotFound,
			map[string]any{"external_id": externalID},
		)
	}
	return records[0].toDomain(), nil
}

func newUserRecord(in core.CreateUserInput, now time.Time) *userRecord {
	record := &userRecord{
		ID:         uuid.NewString(),
		Email:      strings.TrimSpace(in.Email),
		ExternalID: strings.TrimSpace(in.ExternalID),
		Name:       strings.TrimSpace(in.Name),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if avatar := strings.TrimSpace(in.AvatarURL); avatar != "" {
		record.AvatarURL = &avatar
	}
	return record
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	user := core.User{
		ID:         r.ID,
		Email:      r.Email,
		ExternalID: r.ExternalID,
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.AvatarURL != nil {
		user.AvatarURL = *r.AvatarURL
	}
	return user
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
