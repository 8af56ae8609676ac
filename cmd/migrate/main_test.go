package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/internal/errors"
)

func TestRun(t *testing.T) {
	cfg := config.Database{Driver: "sqlite3", Name: filepath.Join(t.TempDir(), "people.db"), MaxOpenConns: 1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	exec := func(stdin string, args ...string) (string, error) {
		var out bytes.Buffer
		err := run(ctx, cfg, logger, args, strings.NewReader(stdin), &out)
		return out.String(), err
	}

	_, err := exec("", "up")
	require.NoError(t, err)
	out, err := exec("", "version")
	require.NoError(t, err)
	assert.Equal(t, "version: 5  dirty: false\n", out)

	// every failure below returns instead of exiting, so the next run can
	// open the same database again
	_, err = exec("", "down", "zero")
	assert.ErrorContains(t, err, "invalid steps")
	_, err = exec("", "force")
	assert.ErrorContains(t, err, "version argument required")
	_, err = exec("", "force", "v2")
	assert.ErrorContains(t, err, "invalid version")
	_, err = exec("", "sideways")
	assert.True(t, errors.Is(err, errUsage))

	_, err = exec("", "down", "2")
	require.NoError(t, err)
	out, err = exec("", "version")
	require.NoError(t, err)
	assert.Equal(t, "version: 3  dirty: false\n", out)

	out, err = exec("no\n", "drop")
	require.NoError(t, err)
	assert.Equal(t, "aborted\n", out)
}

func TestRun_BadDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := run(context.Background(), config.Database{Driver: "tape", Name: "x"}, logger, []string{"up"}, strings.NewReader(""), io.Discard)
	assert.ErrorContains(t, err, "migration init failed")
}
