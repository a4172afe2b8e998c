package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/fernid/internal/mapper"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/repository"
)

// AuthService signs users in and registers new accounts.
type AuthService struct {
	identities identityStore
	profiles   profileStore
	avatars    AvatarUploader
	bcryptCost int
	log        *zap.Logger
}

// NewAuthService wires the service.  avatars may be nil, in which case
// pictures are dropped with a warning.
func NewAuthService(identities identityStore, profiles profileStore, avatars AvatarUploader, bcryptCost int, log *zap.Logger) *AuthService {
	return &AuthService{identities: identities, profiles: profiles, avatars: avatars, bcryptCost: bcryptCost, log: log}
}

// LoginWithEmail returns the signed-in user, or nil when the credentials
// are wrong or the backend fails.  An identity without a profile row
// signs in as a minimal plain user.
func (s *AuthService) LoginWithEmail(ctx context.Context, email, password string) *model.User {
	id, err := s.identities.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			s.log.Info("login rejected", zap.String("email", email))
		} else {
			s.log.Error("loginWithEmail", zap.Error(err))
		}
		return nil
	}

	row, err := s.profiles.GetByID(ctx, id.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("loginWithEmail: profile lookup failed", zap.String("user_id", id.ID), zap.Error(err))
		}
		return &model.User{
			ID:        id.ID,
			Username:  id.Email,
			Email:     id.Email,
			Role:      model.RoleUser,
			CreatedAt: id.CreatedAt,
		}
	}
	u := mapper.ToUser(row)
	u.Email = id.Email
	return &u
}

// RegisterWithEmail creates an identity and its profile.
//
// When the identity already exists with the same password, the profile is
// recreated if missing and ErrDuplicateAccount is returned otherwise.  A
// picture upload failure does not fail registration.
func (s *AuthService) RegisterWithEmail(ctx context.Context, username, email, password string, picture *Upload) (*model.User, error) {
	username = strings.TrimSpace(username)
	existing, err := s.identities.Authenticate(ctx, email, password)
	switch {
	case err == nil:
		if _, perr := s.profiles.GetByID(ctx, existing.ID); perr == nil {
			return nil, ErrDuplicateAccount
		} else if !errors.Is(perr, repository.ErrNotFound) {
			s.log.Error("registerWithEmail: profile lookup", zap.Error(perr))
			return nil, ErrRegistration
		}
		s.log.Info("recreating missing profile", zap.String("user_id", existing.ID))
		return s.createProfile(ctx, existing, username, picture)
	case !errors.Is(err, repository.ErrInvalidCredentials):
		s.log.Error("registerWithEmail: credential check", zap.Error(err))
		return nil, ErrRegistration
	}

	created, err := s.identities.Create(ctx, email, password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailRegistered
		}
		s.log.Error("registerWithEmail: create identity", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	return s.createProfile(ctx, created, username, picture)
}

func (s *AuthService) createProfile(ctx context.Context, id repository.Identity, username string, picture *Upload) (*model.User, error) {
	u := model.User{
		ID:        id.ID,
		Username:  username,
		Email:     id.Email,
		Role:      model.RoleUser,
		CreatedAt: id.CreatedAt,
	}
	u.ProfilePicture = s.uploadPicture(ctx, id.ID, picture)
	if err := s.profiles.Insert(ctx, mapper.FromUser(u)); err != nil {
		s.log.Error("registerWithEmail: insert profile", zap.String("user_id", id.ID), zap.Error(err))
		return nil, ErrProfileSetup
	}
	return &u, nil
}

// UpdateProfile changes the username and, when picture is given, the
// profile picture.  It returns the updated user or nil on failure.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, username string, picture *Upload) *model.User {
	row, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		s.log.Error("updateProfile: load", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if username = strings.TrimSpace(username); username == "" {
		username = row.Username
	}
	old := row.ProfilePicture.String
	pic := old
	if url := s.uploadPicture(ctx, userID, picture); url != "" {
		pic = url
	}
	if err := s.profiles.UpdateDetails(ctx, userID, username, pic); err != nil {
		s.log.Error("updateProfile", zap.String("user_id", userID), zap.Error(err))
		if pic != old {
			removePicture(ctx, s.avatars, pic, s.log)
		}
		return nil
	}
	if pic != old {
		removePicture(ctx, s.avatars, old, s.log)
	}
	row.Username = username
	row.ProfilePicture = sql.NullString{String: pic, Valid: pic != ""}
	u := mapper.ToUser(row)
	return &u
}

// uploadPicture returns the public URL, or "" when there is nothing to
// upload or the upload failed.
func (s *AuthService) uploadPicture(ctx context.Context, userID string, picture *Upload) string {
	if picture == nil || picture.Body == nil {
		return ""
	}
	if s.avatars == nil {
		s.log.Warn("profile picture dropped: no avatar store configured", zap.String("user_id", userID))
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	url, err := s.avatars.Upload(ctx, userID, picture.Filename, picture.ContentType, picture.Body)
	if err != nil {
		s.log.Error("profile picture upload failed", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return url
}

// removePicture deletes a stored picture.  Failures only leave an orphaned
// object behind, so they are logged and dropped.
func removePicture(ctx context.Context, avatars AvatarUploader, url string, log *zap.Logger) {
	if avatars == nil || url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := avatars.Delete(ctx, url); err != nil {
		log.Warn("profile picture cleanup failed", zap.String("url", url), zap.Error(err))
	}
}
