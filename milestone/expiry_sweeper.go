package milestone

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
	"github.com/chids04/0xm-relay/store"
)

// ArtifactRemover removes a stored object by CID.
type ArtifactRemover interface {
	Remove(ctx context.Context, cid string) error
}

// ExpirySweeper deletes declined milestones once their retention window
// has passed: stored artifacts are unpinned, then the record and its index
// entries are removed. This is the only path that ever deletes a
// milestone.
type ExpirySweeper struct {
	database *gorm.DB
	remover  ArtifactRemover
	interval time.Duration
	logger   zerolog.Logger
}

func NewExpirySweeper(database *gorm.DB, remover ArtifactRemover, interval time.Duration, log zerolog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		database: database,
		remover:  remover,
		interval: interval,
		logger:   logger.Component(log, "expiry_sweeper"),
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			} else if n > 0 {
				s.logger.Info().Int("swept", n).Msg("expired milestones cleaned up")
			}
		}
	}
}

// SweepOnce processes every expiry record whose cleanup time has passed
// and reports how many were cleaned up. Artifact removal is best effort;
// database cleanup only proceeds once the removal attempts are done.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	var due []store.ExpiryRecord
	err := s.database.Where("cleanup_at <= ?", time.Now()).Find(&due).Error
	if err != nil {
		return 0, errors.New(errors.CodeInternal, "failed to list due expiry records").WithCause(err)
	}

	swept := 0
	for i := range due {
		if err := s.sweepRecord(ctx, &due[i]); err != nil {
			s.logger.Warn().Err(err).
				Str("milestone_id", due[i].MilestoneID).
				Msg("failed to sweep expired milestone")
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *ExpirySweeper) sweepRecord(ctx context.Context, record *store.ExpiryRecord) error {
	for _, cid := range record.CIDs {
		if err := s.remover.Remove(ctx, cid); err != nil {
			s.logger.Warn().Err(err).Str("cid", cid).Msg("failed to remove stored artifact")
		}
	}

	return s.database.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("milestone_id = ?", record.MilestoneID).
			Delete(&store.IndexEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", record.MilestoneID).
			Delete(&store.Milestone{}).Error; err != nil {
			return err
		}
		return tx.Delete(record).Error
	})
}
