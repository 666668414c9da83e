package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"

	"taskdesk/backend/internal/models"
)

// ErrNotFound is returned when a lookup or delete matches no row.
var ErrNotFound = errors.New("record not found")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// ExistsByEmail ignores the user identified by exclude, if any.
	ExistsByEmail(ctx context.Context, email string, exclude uuid.UUID) (bool, error)
	Save(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	// FindByID loads the task together with its creator and assignee.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context) ([]models.Task, error)
	ExistsByTitle(ctx context.Context, title string, exclude uuid.UUID) (bool, error)
	Save(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type TokenRepository interface {
	RecordOutstanding(ctx context.Context, token *models.OutstandingToken) error
	// Blacklist is idempotent: a jti that is already blacklisted is left alone.
	Blacklist(ctx context.Context, token *models.BlacklistedToken) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	// DeleteExpired removes outstanding and blacklisted rows that expired
	// before now and reports how many rows went.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
