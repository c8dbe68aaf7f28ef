package model

import "github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"

// Status is a per-type lifecycle state. Terminal states are never deleted,
// only reached.
type Status string

const (
	// parcel
	StatusActive Status = "active"
	// input-application
	StatusApplied Status = "applied"
	// harvest-lot, wine-batch, packaged-lot
	StatusRegistered          Status = "registered"
	StatusAnalyzed            Status = "analyzed"
	StatusTransferred         Status = "transferred"
	StatusReceived            Status = "received"
	StatusInProcessing        Status = "in-processing"
	StatusInElaboration       Status = "in-elaboration"
	StatusBottled             Status = "bottled"
	StatusCreated             Status = "created"
	StatusInTransit           Status = "in-transit"
	StatusDelivered           Status = "delivered"
	StatusPendingConfirmation Status = "pending-confirmation"
	StatusInShipment          Status = "in-shipment"
	StatusAvailable           Status = "available"
	StatusSold                Status = "sold"
)

// statusMachine lists, per asset type, the transitions a role operation may
// perform. An operation asserts the current status has an edge to the target
// before writing; anything else is a state error.
var statusMachine = map[Type]map[Status][]Status{
	TypeParcel: {
		StatusActive: nil,
	},
	TypeInputApplication: {
		StatusApplied: nil,
	},
	TypeHarvestLot: {
		StatusRegistered:   {StatusAnalyzed, StatusTransferred},
		StatusAnalyzed:     {StatusTransferred, StatusInProcessing},
		StatusTransferred:  {StatusReceived},
		StatusReceived:     {StatusAnalyzed, StatusInProcessing},
		StatusInProcessing: nil,
	},
	TypeWineBatch: {
		StatusInElaboration: {StatusAnalyzed, StatusBottled},
		StatusAnalyzed:      {StatusAnalyzed, StatusBottled},
		StatusBottled:       nil,
	},
	TypePackagedLot: {
		StatusCreated:             {StatusTransferred},
		StatusTransferred:         {StatusInTransit, StatusReceived},
		StatusInTransit:           {StatusPendingConfirmation},
		StatusPendingConfirmation: {StatusReceived},
		StatusReceived:            {StatusInShipment, StatusAvailable},
		StatusInShipment:          {StatusReceived},
		StatusAvailable:           nil,
	},
	TypeUnit: {
		StatusAvailable: {StatusSold},
		StatusSold:      nil,
	},
}

func statusKnown(t Type, s Status) bool {
	_, ok := statusMachine[t][s]
	return ok
}

// CanTransition reports whether the per-type state machine has an edge from
// one status to another.
func CanTransition(t Type, from, to Status) bool {
	for _, next := range statusMachine[t][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the asset to the target status, failing with a state
// error when the per-type machine has no such edge.
func (a *Asset) Transition(to Status) error {
	if !CanTransition(a.Type, a.Status, to) {
		return errs.Statef("%s %s cannot go from %q to %q", a.Type, a.ID, a.Status, to)
	}
	a.Status = to
	return nil
}
