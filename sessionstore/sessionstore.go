package sessionstore

import (
	"context"

	"github.com/International-Combat-Archery-Alliance/guest-registration/registration"
	"github.com/google/uuid"
)

// Repository keeps registration sessions between requests.
type Repository interface {
	// Get fails with REASON_SESSION_DOES_NOT_EXIST for unknown IDs.
	Get(ctx context.Context, id uuid.UUID) (registration.Session, error)
	Save(ctx context.Context, session registration.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
}
