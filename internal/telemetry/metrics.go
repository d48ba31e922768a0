package telemetry

import "go.opentelemetry.io/otel/metric"

// Metrics holds the orchestration instruments.
type Metrics struct {
	TaskRuns        metric.Int64Counter
	TaskAttempts    metric.Int64Counter
	TaskDuration    metric.Float64Histogram
	TokensUsed      metric.Int64Counter
	ProjectRuns     metric.Int64Counter
	ProjectDuration metric.Float64Histogram
	WavesExecuted   metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.TaskRuns, err = meter.Int64Counter("agency.task.runs",
		metric.WithDescription("Task runs by final status"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskAttempts, err = meter.Int64Counter("agency.task.attempts",
		metric.WithDescription("Agent invocations, including retries"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("agency.task.duration",
		metric.WithDescription("Task run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.TokensUsed, err = meter.Int64Counter("agency.agent.tokens",
		metric.WithDescription("Total tokens consumed by agents"),
	)
	if err != nil {
		return nil, err
	}

	m.ProjectRuns, err = meter.Int64Counter("agency.project.runs",
		metric.WithDescription("Project executions by final status"),
	)
	if err != nil {
		return nil, err
	}

	m.ProjectDuration, err = meter.Float64Histogram("agency.project.duration",
		metric.WithDescription("Project execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.WavesExecuted, err = meter.Int64Counter("agency.project.waves",
		metric.WithDescription("Execution waves run"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
