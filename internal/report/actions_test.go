package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runFields(t *testing.T, args ...string) (map[string]string, error) {
	t.Helper()
	var got map[string]string
	var gotErr error

	flags := []cli.Flag{
		&cli.StringFlag{Name: "fields-file"},
		&cli.StringSliceFlag{Name: "field", Aliases: []string{"f"}},
	}
	for _, pf := range ProductFlags {
		flags = append(flags, &cli.StringFlag{Name: pf.Flag})
	}

	app := &cli.App{
		Name:  "test",
		Flags: flags,
		Action: func(c *cli.Context) error {
			got, gotErr = readFields(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return got, gotErr
}

func TestReadFieldsPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acme.yaml")
	require.NoError(t, os.WriteFile(path, []byte("product_name: From File\nindustry: Rockets\n"), 0644))

	fields, err := runFields(t,
		"--fields-file", path,
		"--product-name", "From Flag",
		"--usp", "Loud",
		"--tone", "Casual",
		"-f", "industry=Anvils",
	)

	require.NoError(t, err)
	assert.Equal(t, "From Flag", fields["product_name"])
	assert.Equal(t, "Anvils", fields["industry"])
	assert.Equal(t, "Loud", fields["unique_selling_point"])
	assert.Equal(t, "Casual", fields["tone_of_voice"])
}

func TestReadFieldsErrors(t *testing.T) {
	_, err := runFields(t, "-f", "novalue")
	assert.Error(t, err)

	_, err = runFields(t, "--fields-file", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(&pipeline.StageError{Stage: pipeline.StageValidation, Err: &models.ValidationError{}}))
	assert.Equal(t, 2, exitCode(&pipeline.StageError{Stage: "fetching", Err: errors.New("boom")}))
}
