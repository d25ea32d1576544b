package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "mfi-api"

// Metrics holds the MFI API metric instruments. Counters carry an "entity"
// attribute ("MFI" or "BRANCH").
type Metrics struct {
	RecordsCreated metric.Int64Counter
	RecordsUpdated metric.Int64Counter
	RecordsDeleted metric.Int64Counter
	UploadFailures metric.Int64Counter
	UploadDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RecordsCreated, err = meter.Int64Counter("mfi.records.created",
		metric.WithDescription("Number of MFI and branch records created"))
	if err != nil {
		return nil, err
	}

	m.RecordsUpdated, err = meter.Int64Counter("mfi.records.updated",
		metric.WithDescription("Number of MFI and branch records updated"))
	if err != nil {
		return nil, err
	}

	m.RecordsDeleted, err = meter.Int64Counter("mfi.records.deleted",
		metric.WithDescription("Number of MFI and branch records deleted"))
	if err != nil {
		return nil, err
	}

	m.UploadFailures, err = meter.Int64Counter("mfi.logo.upload_failures",
		metric.WithDescription("Number of failed logo uploads"))
	if err != nil {
		return nil, err
	}

	m.UploadDuration, err = meter.Float64Histogram("mfi.logo.upload_duration_seconds",
		metric.WithDescription("Logo upload duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
