package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/config"
	"github.com/sevigo/ragbench/enrich"
)

func TestSetupLogger(t *testing.T) {
	logger, err := setupLogger(config.Log{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = setupLogger(config.Log{Level: "info", Format: "xml"})
	require.ErrorIs(t, err, config.ErrInvalid)

	_, err = setupLogger(config.Log{Level: "loud", Format: "text"})
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0, 2)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"enrich", "evaluate"}, names)

	for _, flag := range []string{"config", "log-level", "log-format", "metrics-addr"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestEnrichStrategy(t *testing.T) {
	cfg := config.Default()
	a := &app{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	s, closeStore, err := a.enrichStrategy()
	require.NoError(t, err)
	closeStore()
	assert.IsType(t, &enrich.Parallel{}, s)

	cfg.Enrich.Mode = config.ModeSerial
	cfg.Checkpoint.Path = filepath.Join(t.TempDir(), "cp.json")
	s, closeStore, err = a.enrichStrategy()
	require.NoError(t, err)
	closeStore()
	assert.IsType(t, &enrich.Serial{}, s)

	cfg.Checkpoint.Backend = "etcd"
	_, _, err = a.enrichStrategy()
	require.ErrorIs(t, err, config.ErrInvalid)
}
