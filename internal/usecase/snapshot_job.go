package usecase

import (
	"errors"
	"fmt"
	"os"
	"time"

	xlogger "EarnPull/pkg/logger"
)

// SnapshotJob keeps the snapshot file and the cache in step: an external edit
// of the file is loaded, otherwise pending changes are saved every
// SaveInterval.
type SnapshotJob struct {
	cache        *EarningsCache
	path         string
	saveInterval time.Duration
	lastSave     time.Time
	log          *xlogger.Logger
	now          func() time.Time
}

func NewSnapshotJob(cache *EarningsCache, path string, saveInterval time.Duration, log *xlogger.Logger) *SnapshotJob {
	return &SnapshotJob{
		cache:        cache,
		path:         path,
		saveInterval: saveInterval,
		lastSave:     time.Now(),
		log:          log.With(xlogger.String("component", "snapshot_job")),
		now:          time.Now,
	}
}

func (j *SnapshotJob) Name() string { return "earnings_snapshot" }

func (j *SnapshotJob) Run() error {
	changed, err := j.changedOnDisk()
	if err != nil {
		return err
	}
	if changed {
		j.log.Info("snapshot changed on disk, reloading", xlogger.String("path", j.path))
		if err := j.cache.LoadSnapshot(j.path); err != nil {
			return fmt.Errorf("reload snapshot: %w", err)
		}
		j.lastSave = j.now()
		return nil
	}

	if j.now().Sub(j.lastSave) < j.saveInterval {
		return nil
	}
	if err := j.cache.SaveSnapshot(j.path); err != nil {
		return err
	}
	j.lastSave = j.now()
	return nil
}

// changedOnDisk reports whether someone else wrote the file since the cache
// last loaded or saved it. A file that appears while the cache holds unsaved
// changes is overwritten by the next save instead.
func (j *SnapshotJob) changedOnDisk() (bool, error) {
	st, err := os.Stat(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat snapshot: %w", err)
	}

	known := j.cache.SnapshotModTime()
	if known.IsZero() {
		return !j.cache.Dirty(), nil
	}
	return !st.ModTime().Equal(known), nil
}
