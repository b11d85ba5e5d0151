/*
scheduler.go - Background check for projects about to end

PURPOSE:
  Periodically lists projects ending within the configured horizon and
  logs a warning for each one it has not reported before. The latest
  result is kept for GET /api/alerts/ending so the UI can show it without
  recomputing.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Reports each (project, end date) once; moving the end date re-arms it
  - Uses the same listing as GET /api/reports/projects-ending

CONFIGURATION:
  - config.AlertsConfig.Interval: how often to check (default: 1 hour)
  - config.AlertsConfig.Enabled: whether the monitor runs (default: true)

USAGE:
  monitor := NewEndingMonitor(store, cfg.Reports, cfg.Alerts, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - staffing/reports.go: ProjectsEndingSoon
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/staffing-engine/config"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// EndingCheck is the result of one monitor pass.
type EndingCheck struct {
	CheckedAt time.Time
	AsOf      generic.Date
	Projects  []staffing.ProjectView
	New       int // projects reported for the first time by this pass
}

// EndingMonitor watches for projects about to end.
type EndingMonitor struct {
	Data          staffing.DatasetReader
	Reports       config.ReportsConfig
	CheckInterval time.Duration
	Enabled       bool
	Log           *logrus.Entry
	Today         func() generic.Date

	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	last     *EndingCheck
	reported map[int64]generic.Date
}

// NewEndingMonitor creates a monitor; call Start to run it.
func NewEndingMonitor(data staffing.DatasetReader, reports config.ReportsConfig, alerts config.AlertsConfig, logger *logrus.Logger) *EndingMonitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &EndingMonitor{
		Data:          data,
		Reports:       reports,
		CheckInterval: alerts.Interval,
		Enabled:       alerts.Enabled,
		Log:           logger.WithField("component", "ending-monitor"),
		Today:         generic.Today,
		reported:      make(map[int64]generic.Date),
	}
}

// Start begins the periodic check.
func (m *EndingMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		m.Log.Info("disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.ticker, m.stop)

	m.Log.WithField("interval", m.CheckInterval.String()).Info("started")
}

// Stop halts the check and waits for a pass in flight.
func (m *EndingMonitor) Stop() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.ticker = nil
	m.mu.Unlock()

	m.wg.Wait()
	m.Log.Info("stopped")
}

func (m *EndingMonitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()

	// Run immediately on start
	m.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			m.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one check and returns its result.
func (m *EndingMonitor) RunNow(ctx context.Context) (*EndingCheck, error) {
	ds, err := m.Data.LoadDataset(ctx)
	if err != nil {
		m.Log.WithError(err).Error("failed to load dataset")
		return nil, err
	}
	asOf := m.Today()
	projects := staffing.ProjectsEndingSoon(ds, asOf, m.Reports.EndingWithinDays, m.Reports.IncludeProvisional)

	m.mu.Lock()
	defer m.mu.Unlock()

	check := &EndingCheck{CheckedAt: time.Now().UTC(), AsOf: asOf, Projects: projects}
	for _, p := range projects {
		if prev, ok := m.reported[p.ID]; ok && prev.Equal(*p.End) {
			continue
		}
		m.reported[p.ID] = *p.End
		check.New++
		m.Log.WithFields(logrus.Fields{
			"project_id": p.ID,
			"project":    p.Name,
			"client":     p.ClientName,
			"end_date":   p.End.String(),
			"days_left":  generic.DaysInclusive(asOf, *p.End) - 1,
		}).Warn("project ending soon")
	}
	m.last = check
	return check, nil
}

// Last returns the most recent check, or nil before the first one.
func (m *EndingMonitor) Last() *EndingCheck {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
