package main

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/capacity/store"
	"github.com/warp/capacity-engine/config"
	"github.com/warp/capacity-engine/syncer"
	"github.com/warp/capacity-engine/tracker"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "sync"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("addr"))
	assert.NotNil(t, serve.Flags().Lookup("no-sync"))
}

func TestRunSync_RequiresJira(t *testing.T) {
	logger, _ := test.NewNullLogger()
	jira := tracker.NewJira(tracker.JiraConfig{}, nil, logger, nil)
	svc := syncer.NewService(jira, store.NewMemory(), logger, nil)

	err := runSync(context.Background(), svc, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "jira is not configured")
}

func TestNewLogger(t *testing.T) {
	cfg := config.New()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	log, err := newLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	cfg.LogLevel = "loud"
	_, err = newLogger(cfg)
	assert.Error(t, err)
}
