package contracts

import (
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// TraceCode is the payload encoded into a bottle's QR code. It names the
// unit asset so a consumer scan resolves straight to a trace.
type TraceCode struct {
	ProductID  string    `json:"productId"`
	RetailerID string    `json:"retailerId"`
	LotID      string    `json:"lotId"`
	IssuedAt   time.Time `json:"issuedAt"`
	URL        string    `json:"url"`
}

// traceBaseURL prefixes the consumer-facing link inside trace codes.
const traceBaseURL = "https://trace.winetrace.example/t/"

// RetailerContract covers the retail stage: accepting shipments, putting
// lots on sale, issuing per-bottle trace codes and recording sales.
type RetailerContract struct {
	contractapi.Contract
	cfg access.Config
}

func NewRetailerContract(cfg access.Config) *RetailerContract {
	c := &RetailerContract{cfg: cfg}
	c.Name = "RetailerContract"
	return c
}

// AcceptShipment takes ownership of a delivered shipment and all of its
// member lots.
func (c *RetailerContract) AcceptShipment(ctx contractapi.TransactionContextInterface, shipmentID string) (*model.Shipment, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRetailer); err != nil {
		return nil, err
	}
	return r.transfer.AcceptShipment(r.caller, r.msp, shipmentID)
}

// ConfirmReceipt completes a pending direct delivery of a packaged lot.
func (c *RetailerContract) ConfirmReceipt(ctx contractapi.TransactionContextInterface, lotID string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRetailer); err != nil {
		return nil, err
	}
	return r.transfer.ConfirmReceipt(r.caller, lotID)
}

// ReceiveLot acknowledges a packaged lot transferred directly from a winery
// or distributor, without a carrier leg.
func (c *RetailerContract) ReceiveLot(ctx contractapi.TransactionContextInterface, lotID string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRetailer); err != nil {
		return nil, err
	}
	return receiveLot(r, lotID)
}

// ListIncomingShipments returns shipments addressed to the caller's
// organization.
func (c *RetailerContract) ListIncomingShipments(ctx contractapi.TransactionContextInterface) ([]*model.Shipment, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRetailer); err != nil {
		return nil, err
	}
	return r.transfer.ShipmentsFor(r.msp)
}

// MakeAvailable puts a received lot on sale.
func (c *RetailerContract) MakeAvailable(ctx contractapi.TransactionContextInterface, lotID string, units int, storeLocation string, price float64) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRetailer); err != nil {
		return nil, err
	}
	return makeAvailable(r, lotID, units, storeLocation, price)
}

// GenerateTraceCode issues a bottle-level unit for a lot on sale and returns
// the QR payload for its label.
func (c *RetailerContract) GenerateTraceCode(ctx contractapi.TransactionContextInterface, lotID, unitID string) (*TraceCode, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRetailer); err != nil {
		return nil, err
	}
	return generateTraceCode(r, lotID, unitID)
}

// RecordSale marks a unit sold and decrements the lot's availability.
func (c *RetailerContract) RecordSale(ctx contractapi.TransactionContextInterface, lotID, unitID string) (*model.Asset, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	if err := r.guard.Enforce(access.RoleRetailer); err != nil {
		return nil, err
	}
	return recordSale(r, lotID, unitID)
}

func makeAvailable(r *runtime, lotID string, units int, storeLocation string, price float64) (*model.Asset, error) {
	lot, err := r.store.GetAsset(lotID)
	if err != nil {
		return nil, err
	}
	if lot.Owner != r.caller {
		return nil, errs.Unauthorizedf("packaged lot %s belongs to another retailer", lotID)
	}
	if lot.Type != model.TypePackagedLot {
		return nil, errs.Validationf("%s is not a packaged lot", lotID)
	}
	if units <= 0 {
		return nil, errs.Validationf("availability needs a positive unit count")
	}
	if units > lot.Properties.PackagedLot.BottleCount {
		return nil, errs.Validationf("cannot offer %d units from a lot of %d bottles", units, lot.Properties.PackagedLot.BottleCount)
	}
	if err := lot.Transition(model.StatusAvailable); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	lot.Properties.PackagedLot.Availability = &model.Availability{
		Units:         units,
		StoreLocation: storeLocation,
		Price:         price,
		Since:         now,
	}
	lot.AppendHistory(now, model.ActionAvailableForSale, r.caller, map[string]string{
		"storeLocation": storeLocation,
	})
	if err := r.store.UpdateAsset(lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func generateTraceCode(r *runtime, lotID, unitID string) (*TraceCode, error) {
	lot, err := r.store.GetAsset(lotID)
	if err != nil {
		return nil, err
	}
	if lot.Owner != r.caller {
		return nil, errs.Unauthorizedf("packaged lot %s belongs to another retailer", lotID)
	}
	// A unit is also retailer-owned and available, so the type check keeps
	// units from being minted off other units.
	if lot.Type != model.TypePackagedLot {
		return nil, errs.Validationf("%s is not a packaged lot", lotID)
	}
	if lot.Status != model.StatusAvailable {
		return nil, errs.Statef("packaged lot %s is not on sale", lotID)
	}
	key := unitKey(lotID, unitID)
	exists, err := r.store.Exists(key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.AlreadyExistsf("unit %s already exists", key)
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}

	unit := model.NewAsset(key, model.TypeUnit, r.caller, model.StatusAvailable, model.Properties{
		Unit: &model.UnitProperties{
			PackagedLotID: lotID,
			SerialNumber:  unitID,
			IssuedAt:      now,
		},
	}, now)
	if err := r.store.CreateAsset(unit); err != nil {
		return nil, err
	}

	lot.AppendHistory(now, model.ActionTraceCodeIssued, r.caller, map[string]string{"unitId": key})
	if err := r.store.UpdateAsset(lot); err != nil {
		return nil, err
	}

	return &TraceCode{
		ProductID:  key,
		RetailerID: r.caller,
		LotID:      lotID,
		IssuedAt:   now,
		URL:        traceBaseURL + key,
	}, nil
}

func recordSale(r *runtime, lotID, unitID string) (*model.Asset, error) {
	key := unitKey(lotID, unitID)
	unit, err := r.store.GetAsset(key)
	if err != nil {
		return nil, err
	}
	if unit.Owner != r.caller {
		return nil, errs.Unauthorizedf("unit %s belongs to another retailer", key)
	}
	if err := unit.Transition(model.StatusSold); err != nil {
		return nil, err
	}
	now, err := r.now()
	if err != nil {
		return nil, err
	}
	unit.Properties.Unit.SoldAt = &now
	unit.AppendHistory(now, model.ActionSold, r.caller, nil)
	if err := r.store.UpdateAsset(unit); err != nil {
		return nil, err
	}

	lot, err := r.store.GetAsset(lotID)
	if err != nil {
		return nil, err
	}
	if av := lot.Properties.PackagedLot.Availability; av != nil && av.Units > 0 {
		av.Units--
		if err := r.store.UpdateAsset(lot); err != nil {
			return nil, err
		}
	}
	return unit, nil
}
