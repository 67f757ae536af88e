package artifact_manager

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/storage"
	"github.com/google/uuid"
)

const DefaultBaseDir = models.DefaultOutputDir

// GetRunDir returns the directory for a specific run.
// Example: reports/2b1c.../
func GetRunDir(baseDir, runID string) string {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	return filepath.Join(baseDir, sanitizeSlug(runID))
}

// Manager writes rendered artifacts to disk. Every saved file gets a distinct
// generated name so repeated exports never overwrite each other.
type Manager struct {
	baseDir string
	store   *storage.Storage
	now     func() time.Time
}

func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	return &Manager{baseDir: baseDir, store: &storage.Storage{}, now: time.Now}
}

func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Save writes the artifact under the run directory as
// <suggested stem>-<short id><ext> and describes what was written.
func (m *Manager) Save(runID string, artifact models.ReportArtifact) (models.ArtifactRecord, error) {
	filename := uniqueFilename(artifact.SuggestedFilename, artifact.Format)
	path := filepath.Join(GetRunDir(m.baseDir, runID), filename)

	if err := m.store.SaveFile(path, artifact.Payload); err != nil {
		return models.ArtifactRecord{}, fmt.Errorf("failed to save %s: %w", artifact.SuggestedFilename, err)
	}

	return models.ArtifactRecord{
		Format:      artifact.Format,
		Filename:    artifact.SuggestedFilename,
		Path:        path,
		SizeBytes:   int64(len(artifact.Payload)),
		ContentHash: contentHash(artifact.Payload),
		Warnings:    artifact.Warnings,
		CreatedAt:   m.now(),
	}, nil
}

// Load reads a saved artifact back.
func (m *Manager) Load(record models.ArtifactRecord) ([]byte, error) {
	return m.store.ReadFile(record.Path)
}

// Status of a saved artifact compared with its recorded hash.
type Status string

const (
	StatusOK       Status = "ok"
	StatusMissing  Status = "missing"
	StatusModified Status = "modified"
)

// Verify checks that a recorded artifact is still on disk with the content
// it was saved with.
func (m *Manager) Verify(record models.ArtifactRecord) (Status, error) {
	if !m.store.HasFile(record.Path) {
		return StatusMissing, nil
	}
	data, err := m.Load(record)
	if err != nil {
		return "", err
	}
	if contentHash(data) != record.ContentHash {
		return StatusModified, nil
	}
	return StatusOK, nil
}

func uniqueFilename(suggested string, format models.Format) string {
	ext := filepath.Ext(suggested)
	if ext == "" {
		ext = format.Extension()
	}
	stem := sanitizeSlug(strings.TrimSuffix(suggested, ext))
	if stem == "" {
		stem = "report"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s%s", stem, id[:12], ext)
}

var invalidFilenameChar = regexp.MustCompile(`[^a-zA-Z0-9\-_]+`)

// sanitizeSlug creates a filesystem-safe slug.
func sanitizeSlug(s string) string {
	safe := invalidFilenameChar.ReplaceAllString(s, "_")
	return strings.Trim(safe, "_")
}

// contentHash computes SHA256 hash of content and returns hex string.
func contentHash(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
