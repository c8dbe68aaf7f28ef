// Package transfer implements ownership movement: direct single-asset
// transfers and the two-phase delivery handshakes (transport completion →
// confirm receipt, shipment create → accept).
//
// Every operation here runs inside one atomic transaction: the platform
// commits all of its writes together or none of them, so multi-asset loops
// need no locking and can never be partially applied.
package transfer

import (
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// destinationRoles restricts where each asset type may be transferred.
// Violations fail validation before any write.
var destinationRoles = map[model.Type][]access.Role{
	model.TypeHarvestLot:  {access.RoleWinery},
	model.TypeWineBatch:   {access.RoleWinery},
	model.TypePackagedLot: {access.RoleCarrier, access.RoleDistributor, access.RoleRetailer},
}

// Protocol performs ownership changes through the asset store.
type Protocol struct {
	store *ledger.Store
	cfg   access.Config
}

func NewProtocol(store *ledger.Store, cfg access.Config) *Protocol {
	return &Protocol{store: store, cfg: cfg}
}

// Transfer reassigns an asset to a new owner. The actor must be the current
// owner and the destination identity must resolve to a role permitted for
// the asset type.
func (p *Protocol) Transfer(actor, assetID, newOwner string, details map[string]string) (*model.Asset, error) {
	asset, err := p.store.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if asset.Owner != actor {
		return nil, errs.Unauthorizedf("only the owner may transfer %s", assetID)
	}

	allowed, ok := destinationRoles[asset.Type]
	if !ok {
		return nil, errs.Validationf("assets of type %s are not transferable", asset.Type)
	}
	destRole, ok := p.cfg.RoleOfIdentity(newOwner)
	if !ok {
		return nil, errs.Validationf("transfer destination %q belongs to no known organization", newOwner)
	}
	if !roleIn(destRole, allowed) {
		return nil, errs.Validationf("%s may not be transferred to a %s", asset.Type, destRole)
	}

	if err := asset.Transition(model.StatusTransferred); err != nil {
		return nil, err
	}

	now, err := p.store.Now()
	if err != nil {
		return nil, err
	}
	d := map[string]string{"from": actor, "to": newOwner}
	for k, v := range details {
		d[k] = v
	}
	asset.Owner = newOwner
	asset.AppendHistory(now, model.ActionTransferred, actor, d)

	if err := p.store.UpdateAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Deliver completes the carrier leg of a direct lot movement: the lot goes
// to pending-confirmation and remembers the intended recipient. The matching
// ConfirmReceipt finishes the handshake in a later transaction.
func (p *Protocol) Deliver(actor, assetID, recipient string, at time.Time) (*model.Asset, error) {
	asset, err := p.store.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if asset.Owner != actor {
		return nil, errs.Unauthorizedf("only the owner may deliver %s", assetID)
	}
	if err := asset.Transition(model.StatusPendingConfirmation); err != nil {
		return nil, err
	}
	asset.PendingOwner = recipient
	asset.AppendHistory(at, model.ActionDelivered, actor, map[string]string{
		"recipient": recipient,
	})
	if err := p.store.UpdateAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// ConfirmReceipt is the receiving half of a delivery handshake: only the
// pending owner may take ownership, and only of a pending-confirmation lot.
func (p *Protocol) ConfirmReceipt(actor, assetID string) (*model.Asset, error) {
	asset, err := p.store.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if asset.PendingOwner != actor {
		return nil, errs.Unauthorizedf("%s is not awaiting receipt by this caller", assetID)
	}
	if err := asset.Transition(model.StatusReceived); err != nil {
		return nil, err
	}

	now, err := p.store.Now()
	if err != nil {
		return nil, err
	}
	previous := asset.Owner
	asset.Owner = actor
	asset.PendingOwner = ""
	asset.AppendHistory(now, model.ActionReceived, actor, map[string]string{"from": previous})

	if err := p.store.UpdateAsset(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func roleIn(role access.Role, roles []access.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
