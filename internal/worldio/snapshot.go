package worldio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"towerkeep.ai/internal/sim/terrain"
	"towerkeep.ai/internal/sim/tuning"
)

// SnapshotReader wraps a Reader with per-attempt timeouts and bounded
// retries. Reads that still fail become *WorldUnavailableError.
type SnapshotReader struct {
	Reader  Reader
	Retries int
	Timeout time.Duration
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
	Logger  *log.Logger
}

func NewSnapshotReader(r Reader, t tuning.World, logger *log.Logger) *SnapshotReader {
	return &SnapshotReader{
		Reader:  r,
		Retries: t.ReadRetries,
		Timeout: time.Duration(t.ReadTimeoutMs) * time.Millisecond,
		Backoff: 250 * time.Millisecond,
		Logger:  logger,
	}
}

func (s *SnapshotReader) BuildArea(ctx context.Context) (BuildArea, error) {
	var area BuildArea
	err := s.retry(ctx, "read build area", func(ctx context.Context) error {
		a, err := s.Reader.BuildArea(ctx)
		if err != nil {
			return err
		}
		if a.Empty() {
			return &FatalError{Op: "read build area", Err: fmt.Errorf("empty build area %s", a)}
		}
		area = a
		return nil
	})
	return area, err
}

func (s *SnapshotReader) HeightMap(ctx context.Context, area BuildArea) (*terrain.HeightMap, error) {
	var hm *terrain.HeightMap
	err := s.retry(ctx, "read heightmap", func(ctx context.Context) error {
		h, err := s.Reader.HeightMap(ctx, area)
		if err != nil {
			return err
		}
		if h == nil || !h.Rect().ContainsRect(area.Rect()) {
			return &TransientError{Op: "read heightmap", Err: fmt.Errorf("heightmap does not cover %s", area.Rect())}
		}
		hm = h
		return nil
	})
	return hm, err
}

func (s *SnapshotReader) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.Backoff
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = 250 * time.Millisecond
	}
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(s.Retries, 0))), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		actx, cancel := ctx, context.CancelFunc(func() {})
		if s.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, s.Timeout)
		}
		defer cancel()
		err := fn(actx)
		if err != nil && (IsFatal(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, d time.Duration) {
		s.logf("%s: attempt %d failed, retrying in %s: %v", op, attempts, d.Round(time.Millisecond), err)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	return &WorldUnavailableError{Op: op, Attempts: attempts, Err: err}
}

func (s *SnapshotReader) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
