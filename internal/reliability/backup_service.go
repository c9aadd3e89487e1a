// Package reliability provides database backups and maintenance.
package reliability

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const (
	backupPrefix    = "spaces-backup-"
	backupSuffix    = ".db.gz"
	backupTimestamp = "2006-01-02-150405"

	// minBackupsToKeep survive rotation regardless of age
	minBackupsToKeep = 3
)

// ObjectStore is the remote side of backups
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// Snapshotter writes a consistent copy of the database to a file
type Snapshotter interface {
	BackupTo(ctx context.Context, destPath string) error
}

// BackupInfo describes one backup object in the bucket
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService snapshots the spaces database and ships it off-site
type BackupService struct {
	db            Snapshotter
	store         ObjectStore
	stagingDir    string
	retentionDays int
	log           zerolog.Logger
	now           func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db Snapshotter, store ObjectStore, dataDir string, retentionDays int, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:            db,
		store:         store,
		stagingDir:    filepath.Join(dataDir, "backup-staging"),
		retentionDays: retentionDays,
		log:           log.With().Str("service", "backup").Logger(),
		now:           time.Now,
	}
}

// CreateAndUploadBackup snapshots the database, gzips it and uploads it.
// Returns the object key.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	startTime := time.Now()

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(s.stagingDir)

	snapshotPath := filepath.Join(s.stagingDir, "spaces.db")
	if err := s.db.BackupTo(ctx, snapshotPath); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	key := backupPrefix + s.now().UTC().Format(backupTimestamp) + backupSuffix
	archivePath := filepath.Join(s.stagingDir, key)

	checksum, err := compressFile(snapshotPath, archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to compress snapshot: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	info, err := archive.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	if err := s.store.Upload(ctx, key, archive, info.Size()); err != nil {
		return "", err
	}

	s.log.Info().
		Str("key", key).
		Str("checksum", checksum).
		Int64("size_bytes", info.Size()).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Backup uploaded")

	return key, nil
}

// ListBackups returns the backups in the bucket, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		timestamp, ok := parseBackupKey(*obj.Key)
		if !ok {
			s.log.Warn().Str("key", *obj.Key).Msg("Skipping object with unrecognized name")
			continue
		}

		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{Key: *obj.Key, Timestamp: timestamp, SizeBytes: size})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period,
// always keeping the newest few. Returns the number deleted.
func (s *BackupService) RotateOldBackups(ctx context.Context) (int, error) {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	expired := selectExpired(backups, cutoff, minBackupsToKeep)

	deleted := 0
	for _, backup := range expired {
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return deleted, nil
}

// selectExpired picks backups older than cutoff, skipping the first keep
// entries of a newest-first list
func selectExpired(backups []BackupInfo, cutoff time.Time, keep int) []BackupInfo {
	var expired []BackupInfo
	for i, backup := range backups {
		if i < keep {
			continue
		}
		if backup.Timestamp.Before(cutoff) {
			expired = append(expired, backup)
		}
	}
	return expired
}

func parseBackupKey(key string) (time.Time, bool) {
	if !strings.HasPrefix(key, backupPrefix) || !strings.HasSuffix(key, backupSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(key, backupPrefix), backupSuffix)
	timestamp, err := time.Parse(backupTimestamp, raw)
	if err != nil {
		return time.Time{}, false
	}
	return timestamp, true
}

// compressFile gzips src into dst and returns the sha256 of the source
func compressFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	hash := sha256.New()
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, io.TeeReader(in, hash)); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}
