package contracts

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// CarrierContract covers the transport stage: moving packaged lots, logging
// cold-chain conditions and incidents, and the delivery hand-off.
type CarrierContract struct {
	contractapi.Contract
	cfg access.Config
}

func NewCarrierContract(cfg access.Config) *CarrierContract {
	c := &CarrierContract{cfg: cfg}
	c.Name = "CarrierContract"
	return c
}

// StartTransport opens a transport record for a packaged lot the caller owns
// and puts the lot in transit.
func (c *CarrierContract) StartTransport(ctx contractapi.TransactionContextInterface, transportID, lotID, origin, destination, estimatedArrival string) (*model.TransportRecord, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleCarrier); err != nil {
		return nil, err
	}
	return startTransport(r, transportID, lotID, origin, destination, estimatedArrival)
}

// UpdateTransportConditions logs one sensor reading. A reading outside the
// temperature or humidity thresholds raises an automatic incident.
func (c *CarrierContract) UpdateTransportConditions(ctx contractapi.TransactionContextInterface, transportID string, temperatureC, humidityPct float64, location string) (*model.TransportRecord, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleCarrier); err != nil {
		return nil, err
	}
	return updateTransportConditions(r, transportID, temperatureC, humidityPct, location)
}

// RecordIncident logs a manual transport incident.
func (c *CarrierContract) RecordIncident(ctx contractapi.TransactionContextInterface, transportID, details, location string) (*model.TransportRecord, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleCarrier); err != nil {
		return nil, err
	}
	return recordIncident(r, transportID, details, location)
}

// FinishTransport closes the transport and hands the lot to the recipient as
// a pending delivery. The recipient confirms receipt in a later transaction.
func (c *CarrierContract) FinishTransport(ctx contractapi.TransactionContextInterface, transportID, recipient string) (*model.TransportRecord, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleCarrier); err != nil {
		return nil, err
	}
	return finishTransport(r, transportID, recipient)
}

// ListTransports returns the caller's transport records, for gateway
// listings.
func (c *CarrierContract) ListTransports(ctx contractapi.TransactionContextInterface) ([]*model.TransportRecord, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleCarrier); err != nil {
		return nil, err
	}
	return r.store.QueryTransports(ledger.Selector(map[string]interface{}{
		"docType":   model.DocTransport,
		"carrierId": r.caller,
	}))
}

func startTransport(r *runtime, transportID, lotID, origin, destination, estimatedArrival string) (*model.TransportRecord, error) {
	exists, err := r.store.Exists(transportID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.AlreadyExistsf("transport %s already exists", transportID)
	}
	lot, err := r.store.GetAsset(lotID)
	if err != nil {
		return nil, err
	}
	if lot.Owner != r.caller {
		return nil, errs.Unauthorizedf("packaged lot %s was not transferred to this carrier", lotID)
	}
	eta, err := parseTime(estimatedArrival)
	if err != nil {
		return nil, err
	}
	if err := lot.Transition(model.StatusInTransit); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}

	lot.AppendHistory(now, model.ActionInTransit, r.caller, map[string]string{
		"transportId": transportID,
		"origin":      origin,
		"destination": destination,
	})
	if err := r.store.UpdateAsset(lot); err != nil {
		return nil, err
	}

	t := &model.TransportRecord{
		DocType:          model.DocTransport,
		ID:               transportID,
		BatchID:          lotID,
		Origin:           origin,
		Destination:      destination,
		CarrierID:        r.caller,
		DepartureTime:    now,
		EstimatedArrival: eta,
		Status:           model.StatusInTransit,
	}
	if err := r.store.CreateTransport(t); err != nil {
		return nil, err
	}
	return t, nil
}

func updateTransportConditions(r *runtime, transportID string, temperatureC, humidityPct float64, location string) (*model.TransportRecord, error) {
	t, err := r.ownTransport(transportID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusInTransit {
		return nil, errs.Statef("transport %s is not in transit", transportID)
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	reading := model.ConditionReading{
		Timestamp:    now,
		TemperatureC: temperatureC,
		HumidityPct:  humidityPct,
		Location:     location,
	}
	t.Conditions = append(t.Conditions, reading)
	if detail, out := reading.OutOfRange(); out {
		t.Incidents = append(t.Incidents, model.Incident{
			Timestamp: now,
			Details:   detail,
			Location:  location,
		})
	}
	if err := r.store.UpdateTransport(t); err != nil {
		return nil, err
	}
	return t, nil
}

func recordIncident(r *runtime, transportID, details, location string) (*model.TransportRecord, error) {
	t, err := r.ownTransport(transportID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusInTransit {
		return nil, errs.Statef("transport %s is not in transit", transportID)
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	t.Incidents = append(t.Incidents, model.Incident{
		Timestamp: now,
		Details:   details,
		Location:  location,
	})
	if err := r.store.UpdateTransport(t); err != nil {
		return nil, err
	}
	return t, nil
}

func finishTransport(r *runtime, transportID, recipient string) (*model.TransportRecord, error) {
	t, err := r.ownTransport(transportID)
	if err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	if err := t.Complete(now); err != nil {
		return nil, err
	}
	if _, err := r.transfer.Deliver(r.caller, t.BatchID, recipient, now); err != nil {
		return nil, err
	}
	if err := r.store.UpdateTransport(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *runtime) ownTransport(transportID string) (*model.TransportRecord, error) {
	t, err := r.store.GetTransport(transportID)
	if err != nil {
		return nil, err
	}
	if t.CarrierID != r.caller {
		return nil, errs.Unauthorizedf("transport %s belongs to another carrier", transportID)
	}
	return t, nil
}
