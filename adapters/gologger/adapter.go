// Package gologger bridges the connector's glog logging stack into the go-job
// worker runtime that executes the deprovision and membership-audit jobs.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-provisioning/core"
)

// WorkerLoggerName is the log channel the provisioning queue workers run on.
const WorkerLoggerName = "provisioning.worker"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the glog logger and provider once and returns the
// go-job bridges alongside them, so the worker runtime and the provisioning
// hooks log on the same channel.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// EventFields flattens a provisioning worker event into glog key/value args.
// The deprovision and audit jobs carry their subject in the message
// parameters, so the subject is surfaced next to the job id.
func EventFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID)
		if user, ok := event.Message.Parameters["user"].(string); ok && user != "" {
			fields = append(fields, "user", user)
		}
		if collection, ok := event.Message.Parameters["collection"].(string); ok && collection != "" {
			fields = append(fields, "collection", collection)
		}
	}
	if event.Delay > 0 {
		fields = append(fields, "delay", event.Delay.String())
	}
	if event.Duration > 0 {
		fields = append(fields, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}
