package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/bookkeeping-service/internal/export"
)

// Exporter writes a full statement to w
type Exporter interface {
	ExportStatement(ctx context.Context, w io.Writer) error
}

// Scheduler periodically writes XML statements into a backup directory
type Scheduler struct {
	cron     *cron.Cron
	exporter Exporter
	dir      string
	log      *logrus.Logger
	now      func() time.Time
}

// NewScheduler registers the backup job on schedule, which accepts the standard
// five-field format and descriptors such as @daily or @every 1h.
func NewScheduler(schedule, dir string, exporter Exporter, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		exporter: exporter,
		dir:      dir,
		log:      log,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.runBackup); err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Backup scheduler started")
}

// Stop waits for a running backup to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Backup scheduler stop timed out")
	}
}

func (s *Scheduler) runBackup() {
	path, err := s.Backup(context.Background())
	if err != nil {
		s.log.Errorf("Backup failed: %v", err)
		return
	}
	s.log.WithField("path", path).Info("Backup written")
}

// Backup writes one statement file and returns its path. The file only
// appears under its final name once it parses back as a statement.
func (s *Scheduler) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}
	name := fmt.Sprintf("statement-%s.xml", s.now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.exporter.ExportStatement(ctx, tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to export statement: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close backup file: %w", err)
	}
	if err := verify(tmp.Name()); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move backup into place: %w", err)
	}
	return path, nil
}

func verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to reopen backup: %w", err)
	}
	defer f.Close()
	if _, err := export.ReadStatement(f); err != nil {
		return fmt.Errorf("backup does not parse: %w", err)
	}
	return nil
}
