package model

import (
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
)

// Shipment groups assets for a two-phase transfer across organizational
// boundaries: the sender creates it, the carrier moves it, the target
// organization accepts it.
type Shipment struct {
	DocType        string            `json:"docType"`
	ID             string            `json:"id"`
	Products       []string          `json:"products"`
	CreatedAt      time.Time         `json:"createdAt"`
	Owner          string            `json:"owner"`
	SourceOrg      string            `json:"sourceOrg"`
	TargetOrg      string            `json:"targetOrg"`
	TransporterOrg string            `json:"transporterOrg"`
	Status         Status            `json:"status"`
	Properties     map[string]string `json:"properties,omitempty"`
	ReceivedAt     *time.Time        `json:"receivedAt,omitempty"`
	ReceivedBy     string            `json:"receivedBy,omitempty"`
}

var shipmentTransitions = map[Status][]Status{
	StatusCreated:   {StatusInTransit},
	StatusInTransit: {StatusDelivered},
	StatusDelivered: {StatusReceived},
	StatusReceived:  nil,
}

// Transition moves the shipment along created → in-transit → delivered →
// received.
func (s *Shipment) Transition(to Status) error {
	for _, next := range shipmentTransitions[s.Status] {
		if next == to {
			s.Status = to
			return nil
		}
	}
	return errs.Statef("shipment %s cannot go from %q to %q", s.ID, s.Status, to)
}

// Validate checks the shipment invariants before it is written.
func (s *Shipment) Validate() error {
	if s.ID == "" {
		return errs.Validationf("shipment ID is empty")
	}
	if s.DocType != DocShipment {
		return errs.Validationf("shipment %s has docType %q", s.ID, s.DocType)
	}
	if len(s.Products) == 0 {
		return errs.Validationf("shipment %s groups no assets", s.ID)
	}
	if s.TargetOrg == "" || s.TransporterOrg == "" {
		return errs.Validationf("shipment %s is missing target or transporter organization", s.ID)
	}
	if _, ok := shipmentTransitions[s.Status]; !ok {
		return errs.Validationf("shipment %s has unknown status %q", s.ID, s.Status)
	}
	return nil
}
