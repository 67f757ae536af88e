package artifact_manager

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUsesDistinctNames(t *testing.T) {
	m := NewManager(t.TempDir())
	artifact := models.ReportArtifact{Format: models.FormatPDF, Payload: []byte("%PDF-1.3"), SuggestedFilename: "factsheet.pdf"}

	first, err := m.Save("run-1", artifact)
	require.NoError(t, err)
	second, err := m.Save("run-1", artifact)
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, filepath.Join(m.BaseDir(), "run-1"), filepath.Dir(first.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(first.Path), "factsheet-"))
	assert.Equal(t, ".pdf", filepath.Ext(first.Path))
	assert.Equal(t, "factsheet.pdf", first.Filename)
	assert.Equal(t, int64(8), first.SizeBytes)
	assert.Equal(t, first.ContentHash, second.ContentHash)

	data, err := m.Load(first)
	require.NoError(t, err)
	assert.Equal(t, artifact.Payload, data)
}

func TestVerify(t *testing.T) {
	m := NewManager(t.TempDir())
	rec, err := m.Save("run-3", models.ReportArtifact{Format: models.FormatPlain, Payload: []byte("hello"), SuggestedFilename: "a.txt"})
	require.NoError(t, err)

	status, err := m.Verify(rec)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)

	require.NoError(t, os.WriteFile(rec.Path, []byte("changed"), 0644))
	status, err = m.Verify(rec)
	require.NoError(t, err)
	assert.Equal(t, StatusModified, status)

	require.NoError(t, os.Remove(rec.Path))
	status, err = m.Verify(rec)
	require.NoError(t, err)
	assert.Equal(t, StatusMissing, status)
}

func TestSaveKeepsWarnings(t *testing.T) {
	m := NewManager(t.TempDir())

	rec, err := m.Save("run-2", models.ReportArtifact{Format: models.FormatDOCX, SuggestedFilename: "x.docx", Warnings: []string{"logo missing"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"logo missing"}, rec.Warnings)
	_, err = os.Stat(rec.Path)
	assert.NoError(t, err)
}

func TestUniqueFilename(t *testing.T) {
	tests := []struct {
		name      string
		suggested string
		format    models.Format
		prefix    string
		ext       string
	}{
		{"plain", "factsheet.txt", models.FormatPlain, "factsheet-", ".txt"},
		{"version", "factsheet_version_2.docx", models.FormatDOCX, "factsheet_version_2-", ".docx"},
		{"no extension", "page analysis", models.FormatCSV, "page_analysis-", ".csv"},
		{"empty", "", models.FormatXLSX, "report-", ".xlsx"},
		{"unsafe", "../../etc/passwd.txt", models.FormatPlain, "etc_passwd-", ".txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uniqueFilename(tt.suggested, tt.format)
			assert.True(t, strings.HasPrefix(got, tt.prefix), got)
			assert.Equal(t, tt.ext, filepath.Ext(got))
			assert.Equal(t, len(tt.prefix)+12+len(tt.ext), len(got))
		})
	}
}

func TestGetRunDir(t *testing.T) {
	assert.Equal(t, filepath.Join("reports", "abc"), GetRunDir("", "abc"))
	assert.Equal(t, filepath.Join("out", "a_b"), GetRunDir("out", "a/b"))
}
