// Package model holds the on-ledger document types. Every document is stored
// as whole-object JSON at the key equal to its ID, with a docType
// discriminator so rich queries can select one kind.
package model

import (
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
)

// Document discriminators used in rich-query selectors.
const (
	DocAsset       = "asset"
	DocShipment    = "shipment"
	DocCertificate = "certificate"
	DocTransport   = "transport"
)

// Type identifies the kind of supply-chain asset.
type Type string

const (
	TypeHarvestLot       Type = "harvest-lot"
	TypeParcel           Type = "parcel"
	TypeInputApplication Type = "input-application"
	TypeWineBatch        Type = "wine-batch"
	TypePackagedLot      Type = "packaged-lot"
	TypeUnit             Type = "unit"
)

// History actions. Every mutation appends exactly one entry.
const (
	ActionCreated            = "CREATED"
	ActionTransferred        = "TRANSFERRED"
	ActionReceived           = "RECEIVED"
	ActionAnalysisRecorded   = "ANALYSIS_RECORDED"
	ActionInProcessing       = "IN_PROCESSING"
	ActionBottled            = "BOTTLED"
	ActionInTransit          = "IN_TRANSIT"
	ActionDelivered          = "DELIVERED"
	ActionShipmentRequested  = "SHIPMENT_REQUESTED"
	ActionShipmentReceived   = "SHIPMENT_RECEIVED"
	ActionCertified          = "CERTIFIED"
	ActionCertificateRevoked = "CERTIFICATE_REVOKED"
	ActionAvailableForSale   = "AVAILABLE_FOR_SALE"
	ActionTraceCodeIssued    = "TRACE_CODE_ISSUED"
	ActionSold               = "SOLD"
)

// HistoryEntry is one append-only audit record on an asset.
type HistoryEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor"`
	Details   map[string]string `json:"details,omitempty"`
}

// Asset is the universal envelope for every tracked entity.
//
// Owner changes only through the transfer protocol. PendingOwner carries the
// intended recipient during a delivery handshake and is cleared on
// confirmation. History is append-only and ordered by transaction timestamp.
type Asset struct {
	DocType        string         `json:"docType"`
	ID             string         `json:"id"`
	Type           Type           `json:"type"`
	Owner          string         `json:"owner"`
	PendingOwner   string         `json:"pendingOwner,omitempty"`
	Status         Status         `json:"status"`
	CertificateIDs []string       `json:"certificateIds,omitempty"`
	Properties     Properties     `json:"properties"`
	History        []HistoryEntry `json:"history"`
}

// NewAsset builds an asset with its CREATED history entry.
func NewAsset(id string, t Type, owner string, status Status, props Properties, at time.Time) *Asset {
	return &Asset{
		DocType:    DocAsset,
		ID:         id,
		Type:       t,
		Owner:      owner,
		Status:     status,
		Properties: props,
		History: []HistoryEntry{{
			Timestamp: at,
			Action:    ActionCreated,
			Actor:     owner,
		}},
	}
}

// AppendHistory records an action on the asset.
func (a *Asset) AppendHistory(at time.Time, action, actor string, details map[string]string) {
	a.History = append(a.History, HistoryEntry{
		Timestamp: at,
		Action:    action,
		Actor:     actor,
		Details:   details,
	})
}

// Validate checks the envelope invariants: non-empty identity fields, a known
// type with a legal status, and a property variant matching the type.
func (a *Asset) Validate() error {
	if a.ID == "" {
		return errs.Validationf("asset ID is empty")
	}
	if a.Owner == "" {
		return errs.Validationf("asset %s has no owner", a.ID)
	}
	if a.DocType != DocAsset {
		return errs.Validationf("asset %s has docType %q", a.ID, a.DocType)
	}
	if _, ok := statusMachine[a.Type]; !ok {
		return errs.Validationf("asset %s has unknown type %q", a.ID, a.Type)
	}
	if !statusKnown(a.Type, a.Status) {
		return errs.Validationf("status %q is not defined for type %s", a.Status, a.Type)
	}
	return a.Properties.validateFor(a.ID, a.Type)
}
