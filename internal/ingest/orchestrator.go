package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Stage selection values accepted by the CLI.
const (
	TypeAll          = "all"
	TypeProgram      = "program"
	TypeParticipants = "participants"
	TypePerformances = "performances"
	TypeReports      = "reports"
)

// StagesFor maps a selection to the processors to run, in dependency
// order. Any selection other than the program alone implies the program
// stage first: downstream stages enumerate the races it commits, and
// running them against an unloaded date would quietly do nothing.
func StagesFor(which string) ([]StageProcessor, error) {
	switch strings.ToLower(which) {
	case TypeAll:
		return []StageProcessor{ProgramStage{}, ParticipantsStage{}, PerformancesStage{}, ReportsStage{}}, nil
	case TypeProgram:
		return []StageProcessor{ProgramStage{}}, nil
	case TypeParticipants:
		return []StageProcessor{ProgramStage{}, ParticipantsStage{}}, nil
	case TypePerformances:
		return []StageProcessor{ProgramStage{}, PerformancesStage{}}, nil
	case TypeReports:
		return []StageProcessor{ProgramStage{}, ReportsStage{}}, nil
	default:
		return nil, eris.Errorf("unknown ingestion type %q", which)
	}
}

// DateReport aggregates one date's stage summaries.
type DateReport struct {
	Date      DateCode
	Summaries []StageSummary
	// FatalErr is set when a stage returned a terminal error and the
	// date's remaining stages were not attempted. The program stage is
	// terminal on any failure; downstream stages only on
	// environment-level problems (resolver preload, race listing) that
	// the remaining stages would hit too.
	FatalErr error
}

// Orchestrator runs the selected stages over a list of dates. Dates run
// sequentially; parallelism lives inside each stage, where the rate
// limiter can see all in-flight requests.
type Orchestrator struct {
	env    *Env
	runlog *RunLog
}

func NewOrchestrator(env *Env) *Orchestrator {
	return &Orchestrator{env: env, runlog: NewRunLog(env.Pool)}
}

// Run executes the stages for every date and returns the per-date
// reports. The error is non-nil iff some date was aborted by a terminal
// stage failure; race-level failures in downstream stages are reported
// in the summaries only.
func (o *Orchestrator) Run(ctx context.Context, dates []DateCode, which string) ([]DateReport, error) {
	stages, err := StagesFor(which)
	if err != nil {
		return nil, err
	}

	var reports []DateReport
	var failedDates []string
	for _, date := range dates {
		report := o.runDate(ctx, date, stages)
		reports = append(reports, report)
		if report.FatalErr != nil {
			failedDates = append(failedDates, date.String())
		}
		if ctx.Err() != nil {
			return reports, eris.Wrap(ctx.Err(), "ingestion interrupted")
		}
	}

	if len(failedDates) > 0 {
		return reports, eris.Errorf("ingestion aborted for %s", strings.Join(failedDates, ", "))
	}
	return reports, nil
}

func (o *Orchestrator) runDate(ctx context.Context, date DateCode, stages []StageProcessor) DateReport {
	report := DateReport{Date: date}
	log := zap.L().With(zap.Stringer("date", date))

	for _, stage := range stages {
		sum, err := o.runStage(ctx, date, stage)
		report.Summaries = append(report.Summaries, sum)
		if err != nil {
			report.FatalErr = err
			log.Error("stage failed, skipping remaining stages for date",
				zap.String("stage", stage.Name()), zap.Error(err))
			return report
		}
		log.Info("stage complete", zap.String("summary", sum.String()))
	}
	return report
}

func (o *Orchestrator) runStage(ctx context.Context, date DateCode, stage StageProcessor) (StageSummary, error) {
	logID, logErr := o.runlog.Start(ctx, date, stage.Name())
	if logErr != nil {
		// The run log is bookkeeping; losing it is not worth failing
		// an ingestion that would otherwise succeed.
		zap.L().Warn("run log unavailable", zap.Error(logErr))
	}

	sum, err := stage.Run(ctx, o.env, date)
	if logID != "" {
		if err != nil {
			logErr = o.runlog.Fail(ctx, logID, err)
		} else {
			logErr = o.runlog.Complete(ctx, logID, sum)
		}
		if logErr != nil {
			zap.L().Warn("run log update failed", zap.Error(logErr))
		}
	}
	return sum, err
}
