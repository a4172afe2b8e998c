package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/fernid/internal/mapper"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/queue"
	"github.com/iliyamo/fernid/internal/repository"
)

// AdminService backs the admin pages.
type AdminService struct {
	profiles profileStore
	scans    scanStore
	species  speciesStore
	events   EventPublisher
	avatars  AvatarUploader
	log      *zap.Logger
}

func NewAdminService(profiles profileStore, scans scanStore, species speciesStore, events EventPublisher, log *zap.Logger) *AdminService {
	if events == nil {
		events = nopPublisher{}
	}
	return &AdminService{profiles: profiles, scans: scans, species: species, events: events, log: log}
}

// WithAvatars makes DeleteUser remove the user's stored picture too.
func (s *AdminService) WithAvatars(avatars AvatarUploader) *AdminService {
	s.avatars = avatars
	return s
}

// GetAllUsers returns every profile, newest first, or nil on failure.
func (s *AdminService) GetAllUsers(ctx context.Context) []model.User {
	rows, err := s.profiles.List(ctx)
	if err != nil {
		s.log.Error("getAllUsers", zap.Error(err))
		return nil
	}
	out := make([]model.User, len(rows))
	for i, r := range rows {
		out[i] = mapper.ToUser(r)
	}
	return out
}

// PromoteUser makes id an admin with exactly the granted capabilities;
// capabilities missing from grant are stored as false.
func (s *AdminService) PromoteUser(ctx context.Context, id string, grant map[model.Capability]bool) bool {
	if err := s.profiles.SetAdmin(ctx, id, model.PermissionsFrom(grant)); err != nil {
		s.log.Error("promoteUser", zap.String("user_id", id), zap.Error(err))
		return false
	}
	return true
}

// DemoteUser makes id a plain user and clears its permissions.
func (s *AdminService) DemoteUser(ctx context.Context, id string) bool {
	if err := s.profiles.SetUser(ctx, id); err != nil {
		s.log.Error("demoteUser", zap.String("user_id", id), zap.Error(err))
		return false
	}
	return true
}

// UpdateUserRole changes only the role.  Stored permissions are left as
// they are, so an admin set back to "admin" regains its old grant.
func (s *AdminService) UpdateUserRole(ctx context.Context, id string, role model.Role) bool {
	if err := s.profiles.UpdateRole(ctx, id, model.NormalizeRole(string(role))); err != nil {
		s.log.Error("updateUserRole", zap.String("user_id", id), zap.Error(err))
		return false
	}
	return true
}

// DeleteUser removes the user's scans, then the profile.  If the scans
// cannot be removed the profile is left untouched.  The credential
// identity is kept.
func (s *AdminService) DeleteUser(ctx context.Context, id, actorID string) bool {
	var email, pic string
	if row, err := s.profiles.GetByID(ctx, id); err == nil {
		email = row.Email
		pic = row.ProfilePicture.String
	}

	n, err := s.scans.DeleteByUser(ctx, id)
	if err != nil {
		s.log.Error("deleteUser: failed to delete scans", zap.String("user_id", id), zap.Error(err))
		return false
	}
	if err := s.profiles.Delete(ctx, id); err != nil {
		s.log.Error("deleteUser: failed to delete profile", zap.String("user_id", id), zap.Error(err))
		return false
	}
	removePicture(ctx, s.avatars, pic, s.log)

	ev := queue.UserDeletedEvent{
		UserID:       id,
		Email:        email,
		ScansDeleted: int(n),
		DeletedBy:    actorID,
		DeletedAt:    timestamp(time.Now()),
	}
	if err := s.events.UserDeleted(ctx, ev); err != nil {
		s.log.Warn("deleteUser: publish event", zap.Error(err))
	}
	return true
}

// ScanCounts returns the number of scans per user id.  Counts that fail
// to load are reported as zero.
func (s *AdminService) ScanCounts(ctx context.Context, users []model.User) map[string]int {
	var mu sync.Mutex
	counts := make(map[string]int, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, u := range users {
		u := u
		g.Go(func() error {
			n, err := s.scans.CountByUser(gctx, u.ID)
			if err != nil {
				s.log.Warn("scanCounts", zap.String("user_id", u.ID), zap.Error(err))
			}
			mu.Lock()
			counts[u.ID] = n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return counts
}

// SpeciesCount is one entry of the top species table.
type SpeciesCount struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DashboardStats feeds the admin landing page.
type DashboardStats struct {
	TotalUsers   int                `json:"totalUsers"`
	TotalScans   int                `json:"totalScans"`
	FernScans    int                `json:"fernScans"`
	SpeciesCount int                `json:"speciesCount"`
	RecentScans  []model.ScanResult `json:"recentScans"`
	TopSpecies   []SpeciesCount     `json:"topSpecies"`
}

// Dashboard loads users, scans and species concurrently.  A failing
// source contributes nothing rather than failing the page.
func (s *AdminService) Dashboard(ctx context.Context) DashboardStats {
	var (
		profiles []mapper.ProfileRow
		scans    []mapper.ScanRow
		species  []mapper.SpeciesRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if profiles, err = s.profiles.List(gctx); err != nil {
			s.log.Error("dashboard: users", zap.Error(err))
		}
		return nil
	})
	g.Go(func() (err error) {
		if scans, err = s.scans.ListAll(gctx); err != nil {
			s.log.Error("dashboard: scans", zap.Error(err))
		}
		return nil
	})
	g.Go(func() (err error) {
		if species, err = s.species.List(gctx); err != nil {
			s.log.Error("dashboard: species", zap.Error(err))
		}
		return nil
	})
	_ = g.Wait()

	names := make(map[string]string, len(species))
	for _, sp := range species {
		names[sp.Slug] = sp.CommonName
	}

	st := DashboardStats{
		TotalUsers:   len(profiles),
		TotalScans:   len(scans),
		SpeciesCount: len(species),
		RecentScans:  []model.ScanResult{},
		TopSpecies:   []SpeciesCount{},
	}
	freq := map[string]int{}
	for i, r := range scans {
		if r.IsFern {
			st.FernScans++
			if r.SpeciesSlug.Valid {
				freq[r.SpeciesSlug.String]++
			}
		}
		if i < 5 {
			st.RecentScans = append(st.RecentScans, mapper.ToScanResult(r))
		}
	}
	for slug, n := range freq {
		name := names[slug]
		if name == "" {
			name = slug
		}
		st.TopSpecies = append(st.TopSpecies, SpeciesCount{Slug: slug, Name: name, Count: n})
	}
	sort.Slice(st.TopSpecies, func(i, j int) bool {
		a, b := st.TopSpecies[i], st.TopSpecies[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Slug < b.Slug
	})
	if len(st.TopSpecies) > 5 {
		st.TopSpecies = st.TopSpecies[:5]
	}
	return st
}

// GetUser loads one profile, or nil when it does not exist or the lookup
// fails.
func (s *AdminService) GetUser(ctx context.Context, id string) *model.User {
	row, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("getUser", zap.String("user_id", id), zap.Error(err))
		}
		return nil
	}
	u := mapper.ToUser(row)
	return &u
}
