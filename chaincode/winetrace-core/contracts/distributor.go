package contracts

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// DistributorContract covers the distribution stage: confirming deliveries,
// grouping lots into shipments and dispatching them toward retailers.
type DistributorContract struct {
	contractapi.Contract
	cfg access.Config
}

func NewDistributorContract(cfg access.Config) *DistributorContract {
	c := &DistributorContract{cfg: cfg}
	c.Name = "DistributorContract"
	return c
}

// ConfirmReceipt completes a pending delivery of a packaged lot.
func (c *DistributorContract) ConfirmReceipt(ctx contractapi.TransactionContextInterface, lotID string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleDistributor); err != nil {
		return nil, err
	}
	return r.transfer.ConfirmReceipt(r.caller, lotID)
}

// ReceiveLot acknowledges a packaged lot transferred directly to the caller,
// without a carrier leg.
func (c *DistributorContract) ReceiveLot(ctx contractapi.TransactionContextInterface, lotID string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleDistributor); err != nil {
		return nil, err
	}
	return receiveLot(r, lotID)
}

// CreateShipmentGroup bundles received lots into a shipment addressed to a
// target organization. productsJSON is a JSON array of packaged-lot IDs.
func (c *DistributorContract) CreateShipmentGroup(ctx contractapi.TransactionContextInterface, shipmentID, productsJSON, targetOrg, transporterOrg, propsJSON string) (*model.Shipment, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleDistributor); err != nil {
		return nil, err
	}
	products, err := parseStringList(productsJSON)
	if err != nil {
		return nil, err
	}
	props, err := parseStringMap(propsJSON)
	if err != nil {
		return nil, err
	}
	return r.transfer.CreateShipment(r.caller, r.msp, shipmentID, products, targetOrg, transporterOrg, props)
}

// TransferShipmentGroup redirects a not-yet-dispatched shipment to another
// organization.
func (c *DistributorContract) TransferShipmentGroup(ctx contractapi.TransactionContextInterface, shipmentID, targetOrg string) (*model.Shipment, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleDistributor); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	return r.transfer.RetargetShipment(r.caller, shipmentID, targetOrg, now)
}

// DispatchShipment moves a created shipment into transit. Only the carrier
// organization named as its transporter may dispatch.
func (c *DistributorContract) DispatchShipment(ctx contractapi.TransactionContextInterface, shipmentID string) (*model.Shipment, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleCarrier); err != nil {
		return nil, err
	}
	return r.transfer.BeginShipmentTransit(r.msp, shipmentID)
}

// MarkShipmentDelivered records the carrier drop-off of a shipment.
func (c *DistributorContract) MarkShipmentDelivered(ctx contractapi.TransactionContextInterface, shipmentID string) (*model.Shipment, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleCarrier); err != nil {
		return nil, err
	}
	return r.transfer.MarkShipmentDelivered(r.msp, shipmentID)
}

// QueryLotStatus reads one asset. Deliberately open to any enrolled
// identity, like the consumer trace; the gateway gates its route by token.
func (c *DistributorContract) QueryLotStatus(ctx contractapi.TransactionContextInterface, lotID string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	return r.store.GetAsset(lotID)
}

func receiveLot(r *runtime, lotID string) (*model.Asset, error) {
	lot, err := r.store.GetAsset(lotID)
	if err != nil {
		return nil, err
	}
	if lot.Owner != r.caller {
		return nil, errs.Unauthorizedf("packaged lot %s was not transferred to this caller", lotID)
	}
	if lot.Type != model.TypePackagedLot {
		return nil, errs.Validationf("%s is not a packaged lot", lotID)
	}
	if err := lot.Transition(model.StatusReceived); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	lot.AppendHistory(now, model.ActionReceived, r.caller, nil)
	if err := r.store.UpdateAsset(lot); err != nil {
		return nil, err
	}
	return lot, nil
}
