package core

import (
	"context"
	"strings"
	"time"
)

// operationObserver emits the per-operation log line and metrics pair every
// service method reports through. Both sinks are optional.
type operationObserver struct {
	logger  Logger
	metrics MetricsRecorder
}

func newOperationObserver(logger Logger, metrics MetricsRecorder) *operationObserver {
	return &operationObserver{logger: logger, metrics: metrics}
}

func (o *operationObserver) observe(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	if o == nil {
		return
	}
	operation = normalizeOperation(operation)
	duration := time.Since(startedAt)

	tags := map[string]string{"operation": operation}
	if err != nil {
		tags["outcome"] = "error"
	} else {
		tags["outcome"] = "ok"
	}
	o.recordCounter(ctx, "provisioning."+operation+".total", 1, tags)
	o.recordHistogram(ctx, "provisioning."+operation+".duration_ms", float64(duration.Milliseconds()), tags)

	logFields := cloneFields(fields)
	logFields["operation"] = operation
	logFields["duration_ms"] = duration.Milliseconds()
	if err != nil {
		logFields["error"] = err.Error()
		o.logError("provisioning operation failed", logFields)
		return
	}
	o.logInfo("provisioning operation completed", logFields)
}

func (o *operationObserver) logInfo(msg string, fields map[string]any) {
	o.logWithLevel(false, msg, fields)
}

func (o *operationObserver) logError(msg string, fields map[string]any) {
	o.logWithLevel(true, msg, fields)
}

func (o *operationObserver) logWithLevel(isError bool, msg string, fields map[string]any) {
	if o == nil || o.logger == nil {
		return
	}
	if enricher, ok := o.logger.(FieldsLogger); ok {
		enriched := enricher.WithFields(fields)
		if isError {
			enriched.Error(msg)
		} else {
			enriched.Info(msg)
		}
		return
	}
	args := flattenFields(fields)
	if isError {
		o.logger.Error(msg, args...)
		return
	}
	o.logger.Info(msg, args...)
}

func (o *operationObserver) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.IncCounter(ctx, name, value, tags)
}

func (o *operationObserver) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.ObserveHistogram(ctx, name, value, tags)
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+3)
	for key, value := range fields {
		out[key] = value
	}
	return out
}

func flattenFields(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	if operation == "" {
		return "unknown"
	}
	return operation
}
