package importer

import (
	"context"
	"log/slog"
)

// RowDispatcher routes parsed rows to an execution model. The inline
// dispatcher reconciles rows synchronously and the queue-backed one hands
// each row to a worker; the orchestrator does not know which it has.
type RowDispatcher interface {
	Dispatch(ctx context.Context, row Row, line int, result *Result) error
}

// InlineDispatcher reconciles rows in the caller's goroutine. Used for the
// direct upload path, where the client waits for the full result.
type InlineDispatcher struct {
	Reconciler *Reconciler
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, row Row, line int, result *Result) error {
	d.Reconciler.ProcessRow(ctx, row, line, result)
	return nil
}

// Orchestrator runs the parse-and-dispatch stage of an import. Parse
// failures become a single pipeline-level error; they never abort with a
// Go error because the audit record still has to be finalized.
type Orchestrator struct {
	dispatcher RowDispatcher
	logger     *slog.Logger
}

func NewOrchestrator(dispatcher RowDispatcher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{dispatcher: dispatcher, logger: logger}
}

// Run parses data and dispatches every row. Data rows start at source line
// 2; row i of the parse output is line i+2. A dispatch failure (queue down,
// context canceled) surfaces as a pipeline error and stops the run.
func (o *Orchestrator) Run(ctx context.Context, data []byte) *Result {
	result := NewResult()

	rows, err := Parse(data)
	if err != nil {
		o.logger.WarnContext(ctx, "import rejected before row processing", "error", err)
		result.AddPipelineError(classifyParseError(err))
		return result
	}

	for i, row := range rows {
		if err := o.dispatcher.Dispatch(ctx, row, i+2, result); err != nil {
			o.logger.ErrorContext(ctx, "row dispatch failed", "line", i+2, "error", err)
			result.AddPipelineError("Unexpected import error: " + err.Error())
			return result
		}
	}
	return result
}
