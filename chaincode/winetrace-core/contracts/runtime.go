// Package contracts exposes the role-facing smart contracts. Each contract
// is a thin authorization shell: it resolves the caller, enforces the role
// guard, and delegates to the shared store, transfer, certification and
// trace services.
package contracts

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/pkg/errors"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/certify"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/trace"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/transfer"
)

// runtime bundles the per-transaction services. One is built for every
// invocation and discarded with it.
type runtime struct {
	store    *ledger.Store
	guard    *access.Guard
	cfg      access.Config
	caller   string
	msp      string
	transfer *transfer.Protocol
	certs    *certify.Registry
	trace    *trace.Index
}

func newRuntime(ctx contractapi.TransactionContextInterface, cfg access.Config) (*runtime, error) {
	stub := ledger.WrapStub(ctx.GetStub())
	id := access.WrapIdentity(ctx.GetClientIdentity())
	return buildRuntime(stub, id, cfg)
}

// buildRuntime wires the services over any stub and identity, which lets
// tests run contract operations against in-memory fakes.
func buildRuntime(stub ledger.Stub, id access.Identity, cfg access.Config) (*runtime, error) {
	store := ledger.NewStore(stub)
	guard := access.NewGuard(cfg, id)
	caller, err := guard.Caller()
	if err != nil {
		return nil, errors.Wrap(err, "resolving caller identity")
	}
	msp, err := guard.CallerMSP()
	if err != nil {
		return nil, errors.Wrap(err, "resolving caller MSP")
	}
	return &runtime{
		store:    store,
		guard:    guard,
		cfg:      cfg,
		caller:   caller,
		msp:      msp,
		transfer: transfer.NewProtocol(store, cfg),
		certs:    certify.NewRegistry(store),
		trace:    trace.NewIndex(store),
	}, nil
}

func (r *runtime) now() (time.Time, error) {
	return r.store.Now()
}

// unitKey derives the ledger key of a bottle-level unit inside a packaged
// lot.
func unitKey(lotID, unitID string) string {
	return lotID + "-U-" + unitID
}

// parseStringMap decodes an optional JSON object argument. An empty argument
// means no entries.
func parseStringMap(arg string) (map[string]string, error) {
	if strings.TrimSpace(arg) == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(arg), &m); err != nil {
		return nil, errs.Validationf("argument is not a JSON object of strings: %v", err)
	}
	return m, nil
}

// parseStringList decodes a required JSON array argument.
func parseStringList(arg string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(arg), &list); err != nil {
		return nil, errs.Validationf("argument is not a JSON array of strings: %v", err)
	}
	if len(list) == 0 {
		return nil, errs.Validationf("argument lists no IDs")
	}
	return list, nil
}

// parseTime decodes an RFC 3339 timestamp argument.
func parseTime(arg string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, arg)
	if err != nil {
		return time.Time{}, errs.Validationf("timestamp %q is not RFC 3339", arg)
	}
	return t.UTC(), nil
}
