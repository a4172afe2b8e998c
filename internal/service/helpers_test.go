package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/fernid/internal/mapper"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/queue"
	"github.com/iliyamo/fernid/internal/repository"
	"github.com/iliyamo/fernid/internal/testutil"
)

var errBackend = errors.New("backend unavailable")

type fixture struct {
	db         *sql.DB
	identities *repository.IdentityRepo
	profiles   *repository.ProfileRepo
	scans      *repository.ScanRepo
	species    *repository.SpeciesRepo
	events     *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	d := testutil.OpenDB(t)
	return &fixture{
		db:         d,
		identities: repository.NewIdentityRepo(d),
		profiles:   repository.NewProfileRepo(d),
		scans:      repository.NewScanRepo(d),
		species:    repository.NewSpeciesRepo(d),
		events:     &recordingPublisher{},
	}
}

func (f *fixture) auth(avatars AvatarUploader) *AuthService {
	return NewAuthService(f.identities, f.profiles, avatars, bcrypt.MinCost, zap.NewNop())
}

func (f *fixture) admin() *AdminService {
	return NewAdminService(f.profiles, f.scans, f.species, f.events, zap.NewNop())
}

func (f *fixture) scanService() *ScanService {
	return NewScanService(f.scans, f.events, zap.NewNop())
}

// register creates an identity and its profile and returns the user.
func (f *fixture) register(t *testing.T, username, email string) *model.User {
	t.Helper()
	u, err := f.auth(nil).RegisterWithEmail(context.Background(), username, email, "secret123", nil)
	require.NoError(t, err)
	return u
}

func (f *fixture) seedSpecies(t *testing.T, slug, common, scientific string) {
	t.Helper()
	require.NoError(t, f.species.Insert(context.Background(), mapper.SpeciesRow{
		Slug: slug, CommonName: common, ScientificName: scientific,
		Description: "d", Habitat: "h", CareRequirements: "c",
		FunFacts: mapper.StringList{"fact"},
	}))
}

type recordingPublisher struct {
	mu      sync.Mutex
	scans   []queue.ScanRecordedEvent
	deleted []queue.UserDeletedEvent
	err     error
}

func (p *recordingPublisher) ScanRecorded(_ context.Context, ev queue.ScanRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scans = append(p.scans, ev)
	return p.err
}

func (p *recordingPublisher) UserDeleted(_ context.Context, ev queue.UserDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, ev)
	return p.err
}

// callLog records the order of destructive calls across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

// failingScans wraps a real scan store and can fail chosen operations.
type failingScans struct {
	scanStore
	log          *callLog
	deleteByUser error
	deleteOne    map[string]error
	insert       error
	list         error
}

func (f *failingScans) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if f.log != nil {
		f.log.add("scans.DeleteByUser")
	}
	if f.deleteByUser != nil {
		return 0, f.deleteByUser
	}
	return f.scanStore.DeleteByUser(ctx, userID)
}

func (f *failingScans) Delete(ctx context.Context, id string) error {
	if err := f.deleteOne[id]; err != nil {
		return err
	}
	return f.scanStore.Delete(ctx, id)
}

func (f *failingScans) Insert(ctx context.Context, s mapper.ScanRow) (mapper.ScanRow, error) {
	if f.insert != nil {
		return mapper.ScanRow{}, f.insert
	}
	return f.scanStore.Insert(ctx, s)
}

func (f *failingScans) ListAll(ctx context.Context) ([]mapper.ScanRow, error) {
	if f.list != nil {
		return nil, f.list
	}
	return f.scanStore.ListAll(ctx)
}

type loggingProfiles struct {
	profileStore
	log *callLog
}

func (p *loggingProfiles) Delete(ctx context.Context, id string) error {
	p.log.add("profiles.Delete")
	return p.profileStore.Delete(ctx, id)
}

type fakeUploader struct {
	url     string
	err     error
	body    string
	deleted []string
}

func (u *fakeUploader) Upload(_ context.Context, userID, filename, _ string, body io.Reader) (string, error) {
	b, _ := io.ReadAll(body)
	u.body = string(b)
	if u.err != nil {
		return "", u.err
	}
	return u.url + "/" + userID + "-" + filename, nil
}

func (u *fakeUploader) Delete(_ context.Context, url string) error {
	u.deleted = append(u.deleted, url)
	return nil
}
