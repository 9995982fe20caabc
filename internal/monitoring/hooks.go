package monitoring

import (
	"context"
	"time"
)

// ObservabilityHook receives service-level events from the record service.
type ObservabilityHook interface {
	// Called before an operation runs
	OnOperationStart(ctx context.Context, operation string, metadata map[string]any)

	// Called after an operation completes (success or failure)
	OnOperationComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any)

	// Called when a stored field could not be decrypted for display
	OnDecryptFault(ctx context.Context, recordID int64, field string)

	// Called when the access guard refuses an action
	OnAccessDenied(ctx context.Context, role, action string)
}

// NoOpObservabilityHook is a no-op implementation of ObservabilityHook
type NoOpObservabilityHook struct{}

func (n *NoOpObservabilityHook) OnOperationStart(context.Context, string, map[string]any) {}
func (n *NoOpObservabilityHook) OnOperationComplete(context.Context, string, time.Duration, error, map[string]any) {
}
func (n *NoOpObservabilityHook) OnDecryptFault(context.Context, int64, string)  {}
func (n *NoOpObservabilityHook) OnAccessDenied(context.Context, string, string) {}

// LoggingObservabilityHook logs all operations
type LoggingObservabilityHook struct {
	logger *StructuredLogger
}

// NewLoggingObservabilityHook creates a new logging observability hook
func NewLoggingObservabilityHook(logger *StructuredLogger) *LoggingObservabilityHook {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &LoggingObservabilityHook{logger: logger.WithComponent("service")}
}

func (l *LoggingObservabilityHook) OnOperationStart(ctx context.Context, operation string, metadata map[string]any) {
	l.logger.WithContext(ctx).WithFields(metadata).Debug("Operation started", "operation", operation)
}

func (l *LoggingObservabilityHook) OnOperationComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	log := l.logger.WithContext(ctx).WithFields(metadata)
	if err != nil {
		log.WithError(err).Error("Operation failed", "operation", operation, "duration_ms", duration.Milliseconds())
		return
	}
	log.Info("Operation completed", "operation", operation, "duration_ms", duration.Milliseconds())
}

func (l *LoggingObservabilityHook) OnDecryptFault(ctx context.Context, recordID int64, field string) {
	l.logger.WithContext(ctx).Security("decrypt_fault", map[string]any{
		"patient_id": recordID,
		"field":      field,
	})
}

func (l *LoggingObservabilityHook) OnAccessDenied(ctx context.Context, role, action string) {
	l.logger.WithContext(ctx).Security("access_denied", map[string]any{
		"role":   role,
		"action": action,
	})
}

// MetricsObservabilityHook collects metrics for operations
type MetricsObservabilityHook struct {
	collector MetricsCollector
}

// NewMetricsObservabilityHook creates a new metrics observability hook
func NewMetricsObservabilityHook(collector MetricsCollector) *MetricsObservabilityHook {
	if collector == nil {
		collector = &NoOpMetricsCollector{}
	}
	return &MetricsObservabilityHook{collector: collector}
}

func (m *MetricsObservabilityHook) OnOperationStart(context.Context, string, map[string]any) {}

func (m *MetricsObservabilityHook) OnOperationComplete(_ context.Context, operation string, duration time.Duration, err error, _ map[string]any) {
	tags := map[string]string{"operation": operation, "status": "success"}
	if err != nil {
		tags["status"] = "error"
	}
	m.collector.IncrementCounter(MetricOperations, tags)
	m.collector.RecordTiming(MetricOperationLatency, duration, map[string]string{"operation": operation})
}

func (m *MetricsObservabilityHook) OnDecryptFault(_ context.Context, _ int64, field string) {
	m.collector.IncrementCounter(MetricDecryptFaults, map[string]string{"field": field})
}

func (m *MetricsObservabilityHook) OnAccessDenied(_ context.Context, role, action string) {
	m.collector.IncrementCounter(MetricAccessDenied, map[string]string{
		"role":   RoleLabel(role),
		"action": action,
	})
}

// RoleLabel bounds role label cardinality: anything but the three known roles is
// reported as "unknown".
func RoleLabel(role string) string {
	switch role {
	case "admin", "doctor", "receptionist":
		return role
	default:
		return "unknown"
	}
}

// CompositeObservabilityHook combines multiple hooks
type CompositeObservabilityHook struct {
	hooks []ObservabilityHook
}

// NewCompositeObservabilityHook creates a new composite hook
func NewCompositeObservabilityHook(hooks ...ObservabilityHook) *CompositeObservabilityHook {
	return &CompositeObservabilityHook{hooks: hooks}
}

func (c *CompositeObservabilityHook) OnOperationStart(ctx context.Context, operation string, metadata map[string]any) {
	for _, hook := range c.hooks {
		hook.OnOperationStart(ctx, operation, metadata)
	}
}

func (c *CompositeObservabilityHook) OnOperationComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	for _, hook := range c.hooks {
		hook.OnOperationComplete(ctx, operation, duration, err, metadata)
	}
}

func (c *CompositeObservabilityHook) OnDecryptFault(ctx context.Context, recordID int64, field string) {
	for _, hook := range c.hooks {
		hook.OnDecryptFault(ctx, recordID, field)
	}
}

func (c *CompositeObservabilityHook) OnAccessDenied(ctx context.Context, role, action string) {
	for _, hook := range c.hooks {
		hook.OnAccessDenied(ctx, role, action)
	}
}

// Track wraps op with start and complete events and returns op's error.
func Track(ctx context.Context, hook ObservabilityHook, operation string, metadata map[string]any, op func() error) error {
	if hook == nil {
		return op()
	}
	start := time.Now()
	hook.OnOperationStart(ctx, operation, metadata)
	err := op()
	hook.OnOperationComplete(ctx, operation, time.Since(start), err, metadata)
	return err
}
