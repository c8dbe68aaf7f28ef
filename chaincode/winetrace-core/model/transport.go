package model

import (
	"fmt"
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
)

// Acceptable ranges for wine in transit. Readings outside either range
// produce an automatic incident.
const (
	MinTemperatureC = 10.0
	MaxTemperatureC = 18.0
	MinHumidityPct  = 50.0
	MaxHumidityPct  = 80.0
)

// ConditionReading is one sensor sample logged during transport.
type ConditionReading struct {
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC float64   `json:"temperatureC"`
	HumidityPct  float64   `json:"humidityPct"`
	Location     string    `json:"location,omitempty"`
}

// OutOfRange describes which thresholds the reading violates, if any.
func (r ConditionReading) OutOfRange() (string, bool) {
	var issues []string
	if r.TemperatureC < MinTemperatureC || r.TemperatureC > MaxTemperatureC {
		issues = append(issues, fmt.Sprintf("temperature %.1fC outside %.0f-%.0fC", r.TemperatureC, MinTemperatureC, MaxTemperatureC))
	}
	if r.HumidityPct < MinHumidityPct || r.HumidityPct > MaxHumidityPct {
		issues = append(issues, fmt.Sprintf("humidity %.1f%% outside %.0f-%.0f%%", r.HumidityPct, MinHumidityPct, MaxHumidityPct))
	}
	if len(issues) == 0 {
		return "", false
	}
	detail := issues[0]
	for _, is := range issues[1:] {
		detail += "; " + is
	}
	return detail, true
}

// Incident is a recorded transport anomaly, manual or threshold-derived.
type Incident struct {
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
	Location  string    `json:"location,omitempty"`
}

// TransportRecord tracks one carrier movement of a batch (a packaged lot or
// a shipment group).
type TransportRecord struct {
	DocType          string             `json:"docType"`
	ID               string             `json:"id"`
	BatchID          string             `json:"batchId"`
	Origin           string             `json:"origin"`
	Destination      string             `json:"destination"`
	CarrierID        string             `json:"carrierId"`
	DepartureTime    time.Time          `json:"departureTime"`
	EstimatedArrival time.Time          `json:"estimatedArrival"`
	ActualArrival    *time.Time         `json:"actualArrival,omitempty"`
	Status           Status             `json:"status"`
	Conditions       []ConditionReading `json:"conditions,omitempty"`
	Incidents        []Incident         `json:"incidents,omitempty"`
}

// Complete marks the transport delivered at the given arrival time.
func (t *TransportRecord) Complete(arrival time.Time) error {
	if t.Status != StatusInTransit {
		return errs.Statef("transport %s cannot finish from %q", t.ID, t.Status)
	}
	t.Status = StatusDelivered
	t.ActualArrival = &arrival
	return nil
}

// Validate checks the transport invariants before it is written.
func (t *TransportRecord) Validate() error {
	if t.ID == "" {
		return errs.Validationf("transport ID is empty")
	}
	if t.DocType != DocTransport {
		return errs.Validationf("transport %s has docType %q", t.ID, t.DocType)
	}
	if t.BatchID == "" {
		return errs.Validationf("transport %s references no batch", t.ID)
	}
	if t.CarrierID == "" {
		return errs.Validationf("transport %s has no carrier", t.ID)
	}
	return nil
}
