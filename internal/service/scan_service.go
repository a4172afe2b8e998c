package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/fernid/internal/mapper"
	"github.com/iliyamo/fernid/internal/model"
	"github.com/iliyamo/fernid/internal/queue"
	"github.com/iliyamo/fernid/internal/repository"
)

// ScanService records and reads classification results.
type ScanService struct {
	scans  scanStore
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewScanService(scans scanStore, events EventPublisher, log *zap.Logger) *ScanService {
	if events == nil {
		events = nopPublisher{}
	}
	return &ScanService{scans: scans, events: events, log: log, now: time.Now}
}

// CreateScan stores a classification for userID and returns the saved
// scan with species details joined in.  Unlike the other operations it
// fails loudly: the error wraps ErrScanNotSaved.
func (s *ScanService) CreateScan(ctx context.Context, userID, image string, c model.Classification) (model.ScanResult, error) {
	if !c.Valid() {
		return model.ScanResult{}, fmt.Errorf("%w: inconsistent classification", ErrScanNotSaved)
	}
	row := mapper.FromScanResult(model.ScanResult{
		ID:         uuid.NewString(),
		UserID:     userID,
		Image:      image,
		IsPlant:    c.IsPlant,
		IsFern:     c.IsFern,
		Species:    c.Species,
		Confidence: c.Confidence,
		Timestamp:  s.now().UTC(),
	})
	saved, err := s.scans.Insert(ctx, row)
	if err != nil {
		s.log.Error("createScan", zap.String("user_id", userID), zap.Error(err))
		return model.ScanResult{}, fmt.Errorf("%w: %w", ErrScanNotSaved, err)
	}
	out := mapper.ToScanResult(saved)

	ev := queue.ScanRecordedEvent{
		ScanID:     out.ID,
		UserID:     out.UserID,
		IsPlant:    out.IsPlant,
		IsFern:     out.IsFern,
		Species:    out.Species,
		Confidence: out.Confidence,
		RecordedAt: timestamp(out.Timestamp),
	}
	if err := s.events.ScanRecorded(ctx, ev); err != nil {
		s.log.Warn("createScan: publish event", zap.Error(err))
	}
	return out, nil
}

// GetUserScans returns the user's scans, newest first.
func (s *ScanService) GetUserScans(ctx context.Context, userID string) []model.ScanResult {
	rows, err := s.scans.ListByUser(ctx, userID)
	if err != nil {
		s.log.Error("getUserScans", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return toScans(rows)
}

// GetAllScans returns every scan, newest first.
func (s *ScanService) GetAllScans(ctx context.Context) []model.ScanResult {
	rows, err := s.scans.ListAll(ctx)
	if err != nil {
		s.log.Error("getAllScans", zap.Error(err))
		return nil
	}
	return toScans(rows)
}

// GetScanByID returns the scan or nil.
func (s *ScanService) GetScanByID(ctx context.Context, id string) *model.ScanResult {
	row, err := s.scans.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("getScanById", zap.String("scan_id", id), zap.Error(err))
		}
		return nil
	}
	out := mapper.ToScanResult(row)
	return &out
}

// DeleteScan removes one scan.
func (s *ScanService) DeleteScan(ctx context.Context, id string) bool {
	if err := s.scans.Delete(ctx, id); err != nil {
		s.log.Error("deleteScan", zap.String("scan_id", id), zap.Error(err))
		return false
	}
	return true
}

// DeleteAllScans deletes each of the user's scans concurrently and waits
// for all of them.  It returns how many were removed and whether every
// delete succeeded.
func (s *ScanService) DeleteAllScans(ctx context.Context, userID string) (int, bool) {
	rows, err := s.scans.ListByUser(ctx, userID)
	if err != nil {
		s.log.Error("deleteAllScans: list", zap.String("user_id", userID), zap.Error(err))
		return 0, false
	}
	var deleted atomic.Int64
	var g errgroup.Group
	g.SetLimit(8)
	for _, r := range rows {
		r := r
		g.Go(func() error {
			if err := s.scans.Delete(ctx, r.ID); err != nil {
				return fmt.Errorf("scan %s: %w", r.ID, err)
			}
			deleted.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("deleteAllScans", zap.String("user_id", userID), zap.Error(err))
		return int(deleted.Load()), false
	}
	return int(deleted.Load()), true
}

func toScans(rows []mapper.ScanRow) []model.ScanResult {
	out := make([]model.ScanResult, len(rows))
	for i, r := range rows {
		out[i] = mapper.ToScanResult(r)
	}
	return out
}
