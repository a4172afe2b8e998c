// Package service holds the application's repository functions: the
// operations pages call to read and change users, scans and species.
//
// Failure policy: backend errors are logged and turned into a falsy
// result (nil, empty, false).  CreateScan is the one exception and
// returns its error so the scan page can show it.
package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/iliyamo/fernid/internal/mapper"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/queue"
	"github.com/iliyamo/fernid/internal/repository"
)

var (
	// ErrDuplicateAccount is returned when both the identity and the
	// profile for an email already exist.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrEmailRegistered means the email has an identity but the given
	// password does not match it.
	ErrEmailRegistered = errors.New("email already registered")
	ErrProfileSetup    = errors.New("profile setup failed")
	ErrRegistration    = errors.New("registration failed")
	ErrScanNotSaved    = errors.New("failed to save scan result")
)

type identityStore interface {
	Create(ctx context.Context, email, password string, cost int) (repository.Identity, error)
	Authenticate(ctx context.Context, email, password string) (repository.Identity, error)
}

type profileStore interface {
	Insert(ctx context.Context, p mapper.ProfileRow) error
	GetByID(ctx context.Context, id string) (mapper.ProfileRow, error)
	List(ctx context.Context) ([]mapper.ProfileRow, error)
	UpdateRole(ctx context.Context, id string, role model.Role) error
	SetAdmin(ctx context.Context, id string, perms model.AdminPermissions) error
	SetUser(ctx context.Context, id string) error
	UpdateDetails(ctx context.Context, id, username, picture string) error
	Delete(ctx context.Context, id string) error
}

type scanStore interface {
	Insert(ctx context.Context, s mapper.ScanRow) (mapper.ScanRow, error)
	GetByID(ctx context.Context, id string) (mapper.ScanRow, error)
	ListByUser(ctx context.Context, userID string) ([]mapper.ScanRow, error)
	ListAll(ctx context.Context) ([]mapper.ScanRow, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type speciesStore interface {
	List(ctx context.Context) ([]mapper.SpeciesRow, error)
	Get(ctx context.Context, slug string) (mapper.SpeciesRow, error)
	Insert(ctx context.Context, s mapper.SpeciesRow) error
	Update(ctx context.Context, s mapper.SpeciesRow) error
	Delete(ctx context.Context, slug string) error
}

// AvatarUploader stores a profile picture and returns its public URL.
// Delete ignores URLs it did not issue.
type AvatarUploader interface {
	Upload(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// EventPublisher receives activity events.  Publishing is best effort.
type EventPublisher interface {
	ScanRecorded(ctx context.Context, ev queue.ScanRecordedEvent) error
	UserDeleted(ctx context.Context, ev queue.UserDeletedEvent) error
}

// Upload is an uploaded file as received from a form.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type nopPublisher struct{}

func (nopPublisher) ScanRecorded(context.Context, queue.ScanRecordedEvent) error { return nil }
func (nopPublisher) UserDeleted(context.Context, queue.UserDeletedEvent) error   { return nil }

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
