package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/roosearch/internal/metrics"
)

const snapshotContentType = "application/zstd"

// SnapshotInfo describes a completed save.
type SnapshotInfo struct {
	Path      string `json:"path"`
	Bytes     int    `json:"bytes"`
	Documents int    `json:"documents"`
	MirrorURI string `json:"mirror_uri,omitempty"`
}

// SnapshotSave writes the index to the configured path and uploads a copy to
// the mirror when one is set. Saves are serialized. A failed mirror upload is
// logged; the local save still counts.
func (s *Service) SnapshotSave(ctx context.Context) (SnapshotInfo, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	start := time.Now()
	gen := s.store.Generation()
	data, err := s.store.Snapshot(s.cfg.SnapshotPath)
	metrics.ObserveSnapshot("save", err, time.Since(start))
	if err != nil {
		s.logger.Error("snapshot save failed", zap.String("path", s.cfg.SnapshotPath), zap.Error(err))
		return SnapshotInfo{}, fmt.Errorf("snapshot save: %w", err)
	}
	s.savedGen.Store(gen)
	info := SnapshotInfo{
		Path:      s.cfg.SnapshotPath,
		Bytes:     len(data),
		Documents: s.store.DocumentCount(),
	}
	if s.mirror == nil {
		return info, nil
	}
	name := fmt.Sprintf("%s-%s", s.now().Format("20060102T150405Z"), filepath.Base(s.cfg.SnapshotPath))
	uri, err := s.mirror.PutObject(ctx, name, snapshotContentType, bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("snapshot mirror upload failed", zap.String("object", name), zap.Error(err))
		return info, nil
	}
	info.MirrorURI = uri
	s.logger.Info("snapshot mirrored", zap.String("uri", uri))
	return info, nil
}

// SnapshotLoad replaces the index with the snapshot at the configured path.
// A missing file leaves an empty index. A corrupt file leaves the index
// empty and returns the decode error.
func (s *Service) SnapshotLoad(_ context.Context) (Stats, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	start := time.Now()
	err := s.store.Restore(s.cfg.SnapshotPath)
	metrics.ObserveSnapshot("load", err, time.Since(start))
	st := s.store.Stats()
	metrics.SetIndexSize(st.DocumentCount, st.TermCount)
	s.savedGen.Store(s.store.Generation())
	if err != nil {
		return s.Stats(), fmt.Errorf("snapshot load: %w", err)
	}
	return s.Stats(), nil
}

// RunSnapshotLoop saves the index every interval until ctx is done, skipping
// ticks where nothing changed since the last save or load. A non-positive
// interval returns immediately.
func (s *Service) RunSnapshotLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.store.Generation() == s.savedGen.Load() {
				continue
			}
			// Failures are logged by SnapshotSave and retried next tick.
			_, _ = s.SnapshotSave(ctx)
		}
	}
}
