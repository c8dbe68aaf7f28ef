package contracts

import (
	"encoding/json"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/trace"
)

// ConsumerContract is the public read surface. Any enrolled identity may
// trace a product; the view is redacted to provenance facts, valid
// certificates and incident counts.
type ConsumerContract struct {
	contractapi.Contract
	cfg access.Config
}

func NewConsumerContract(cfg access.Config) *ConsumerContract {
	c := &ConsumerContract{cfg: cfg}
	c.Name = "ConsumerContract"
	return c
}

// TraceProduct returns the redacted trace for any asset in the chain,
// usually the unit ID from a scanned bottle.
func (c *ConsumerContract) TraceProduct(ctx contractapi.TransactionContextInterface, productID string) (*trace.ConsumerView, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	return r.trace.ConsumerTrace(productID)
}

// VerifyTraceCode checks a scanned QR payload against the ledger: the unit
// must exist and belong to the lot the code names.
func (c *ConsumerContract) VerifyTraceCode(ctx contractapi.TransactionContextInterface, payloadJSON string) (bool, error) {
	r, err := newRuntime(ctx, c.cfg)
	if err != nil {
		return false, err
	}
	return verifyTraceCode(r, payloadJSON)
}

func verifyTraceCode(r *runtime, payloadJSON string) (bool, error) {
	var code TraceCode
	if err := json.Unmarshal([]byte(payloadJSON), &code); err != nil {
		return false, errs.Validationf("trace code payload is not valid JSON: %v", err)
	}
	if code.ProductID == "" || code.LotID == "" {
		return false, errs.Validationf("trace code payload is missing productId or lotId")
	}
	unit, err := r.store.GetAsset(code.ProductID)
	if err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if unit.Type != model.TypeUnit {
		return false, nil
	}
	return unit.Properties.Unit.PackagedLotID == code.LotID, nil
}
