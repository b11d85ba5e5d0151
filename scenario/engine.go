package scenario

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// ENGINE - Loads, replays and reports
// =============================================================================

// Decoder turns a stored record into a typed Change. An unrecognised kind
// decodes to a Change with a nil Payload and no error.
type Decoder interface {
	Decode(rec generic.ChangeRecord) (Change, error)
}

// Engine recomputes a scenario report on every call. Nothing is cached:
// the log is the only state.
type Engine struct {
	Data      staffing.DatasetReader
	Scenarios staffing.ScenarioStore
	Log       *generic.ChangeLog
	Decoder   Decoder
	Logger    *logrus.Entry
}

func NewEngine(data staffing.DatasetReader, scenarios staffing.ScenarioStore, log *generic.ChangeLog, dec Decoder, logger *logrus.Entry) *Engine {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = logrus.NewEntry(l)
	}
	return &Engine{
		Data:      data,
		Scenarios: scenarios,
		Log:       log,
		Decoder:   dec,
		Logger:    logger.WithField("component", "scenario"),
	}
}

// YearReport is a scenario's year view next to its baseline.
type YearReport struct {
	Scenario staffing.Scenario
	Year     int
	Baseline []staffing.Row
	Rows     []staffing.Row
	Outcome
	Changes []Change
	Skipped []int64
}

// YearReport replays the scenario's log over the current base data and
// diffs the resulting year report against the base year report.
func (e *Engine) YearReport(ctx context.Context, scenarioID int64, year int, includeProvisional bool) (*YearReport, error) {
	sc, err := e.Scenarios.GetScenario(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	base, err := e.Data.LoadDataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	changes, skipped, err := e.changes(ctx, scenarioID)
	if err != nil {
		return nil, err
	}

	res := Materialize(base, changes)
	skipped = append(skipped, res.Skipped...)
	if len(skipped) > 0 {
		e.Logger.WithFields(logrus.Fields{
			"scenario_id": scenarioID,
			"skipped":     skipped,
		}).Warn("skipped unrecognised changes")
	}

	q := staffing.Query{Mode: staffing.ModeYear, Year: year, IncludeProvisional: includeProvisional}
	baseline := staffing.Aggregate(base, q)
	q.Adjustments = res.Adjustments
	rows := staffing.Aggregate(res.Dataset, q)

	out := Diff(DiffInput{
		Baseline: baseline,
		Scenario: rows,
		Changes:  changes,
		Base:     base,
		Result:   res,
		Year:     year,
	})
	e.Logger.WithFields(logrus.Fields{
		"scenario_id": scenarioID,
		"year":        year,
		"changes":     len(changes),
		"dirty":       len(out.Dirty),
	}).Debug("scenario report computed")

	return &YearReport{
		Scenario: sc,
		Year:     year,
		Baseline: baseline,
		Rows:     rows,
		Outcome:  out,
		Changes:  changes,
		Skipped:  skipped,
	}, nil
}

// changes decodes the whole log. A record that fails to decode is treated
// like an unknown kind: reported as skipped and left out of the replay.
func (e *Engine) changes(ctx context.Context, scenarioID int64) ([]Change, []int64, error) {
	recs, err := e.Log.Records(ctx, scenarioID)
	if err != nil {
		return nil, nil, fmt.Errorf("load change log: %w", err)
	}
	changes := make([]Change, 0, len(recs))
	var skipped []int64
	for _, rec := range recs {
		ch, err := e.Decoder.Decode(rec)
		if err != nil {
			e.Logger.WithError(err).WithField("seq", rec.Seq).Warn("undecodable change")
			skipped = append(skipped, rec.Seq)
			continue
		}
		changes = append(changes, ch)
	}
	return changes, skipped, nil
}

// Records lists a scenario's raw change log.
func (e *Engine) Records(ctx context.Context, scenarioID int64) ([]generic.ChangeRecord, error) {
	if _, err := e.Scenarios.GetScenario(ctx, scenarioID); err != nil {
		return nil, err
	}
	return e.Log.Records(ctx, scenarioID)
}

// AppendChange validates payload against kind and appends it as one record.
// The base data is never touched.
func (e *Engine) AppendChange(ctx context.Context, scenarioID int64, kind Kind, payload json.RawMessage, key string) (generic.ChangeRecord, error) {
	if _, err := e.Scenarios.GetScenario(ctx, scenarioID); err != nil {
		return generic.ChangeRecord{}, err
	}
	ch, err := e.Decoder.Decode(generic.ChangeRecord{LogID: scenarioID, Kind: string(kind), Payload: payload})
	if err != nil {
		return generic.ChangeRecord{}, err
	}
	if ch.Payload == nil {
		return generic.ChangeRecord{}, fmt.Errorf("%q: %w", kind, generic.ErrUnknownKind)
	}

	rec, err := e.Log.Append(ctx, scenarioID, string(kind), payload, key)
	if err != nil {
		return generic.ChangeRecord{}, err
	}
	e.Logger.WithFields(logrus.Fields{
		"scenario_id": scenarioID,
		"seq":         rec.Seq,
		"kind":        kind,
	}).Info("change appended")
	return rec, nil
}
