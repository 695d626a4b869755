package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/capacity-engine/capacity"
	"github.com/warp/capacity-engine/config"
	"github.com/warp/capacity-engine/metrics"
	"github.com/warp/capacity-engine/store/sqlite"
	"github.com/warp/capacity-engine/syncer"
	"github.com/warp/capacity-engine/tracker"
)

// app is the wired service graph shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *sqlite.Store
	metrics *metrics.Manager
	tempo   *tracker.Tempo
	jira    *tracker.Jira
	sync    *syncer.Service
	planner *capacity.Planner
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DatabasePath, err)
	}

	m := metrics.NewManager(metrics.WithRuntimeCollectors())

	tempo := tracker.NewTempo(tracker.TempoConfig{
		BaseURL:  cfg.Tempo.BaseURL,
		APIToken: cfg.Tempo.APIToken,
		Timeout:  cfg.Tempo.Timeout,
	}, nil, log, m)
	jira := tracker.NewJira(tracker.JiraConfig{
		BaseURL:  cfg.Jira.URL,
		Email:    cfg.Jira.Email,
		APIToken: cfg.Jira.APIToken,
		Timeout:  cfg.Jira.Timeout,
	}, nil, log, m)

	planner := capacity.NewPlanner(capacity.Deps{
		Allocations:  store,
		FTE:          store,
		Absences:     store,
		Directory:    store,
		Worklogs:     tempo,
		Logger:       log,
		WorkdayHours: decimal.NewFromFloat(cfg.Capacity.WorkdayHours),
	})

	log.WithFields(logrus.Fields{
		"database":         cfg.DatabasePath,
		"jira_configured":  jira.Configured(),
		"tempo_configured": tempo.Configured(),
	}).Info("configuration loaded")

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		metrics: m,
		tempo:   tempo,
		jira:    jira,
		sync:    syncer.NewService(jira, store, log, m),
		planner: planner,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: !isatty.IsTerminal(os.Stderr.Fd()),
		})
	}
	return log, nil
}
