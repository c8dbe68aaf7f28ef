// Package access maps verified caller identities to supply-chain roles and
// enforces role and ownership guards. The Role→Organization table is an
// explicit configuration object built once in main and passed in; nothing is
// read from package state.
package access

import (
	"strings"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
)

// Role is a participant category. Each role is bound to one organizational
// credential domain (MSP).
type Role string

const (
	RoleGrower      Role = "grower"
	RoleWinery      Role = "winery"
	RoleCarrier     Role = "carrier"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
	RoleRegulator   Role = "regulator"
	RoleConsumer    Role = "consumer"
)

// Organization binds a role to its MSP and to the credential namespace its
// enrolled identities carry. The namespace is matched as a substring of the
// full X.509 client ID, so destination identities can be resolved to an
// organization without a ledger lookup.
type Organization struct {
	MSPID     string
	Namespace string
}

// Config is the Role→Organization table.
type Config struct {
	Orgs map[Role]Organization
}

// DefaultConfig matches the reference network's MSP and CA naming.
func DefaultConfig() Config {
	return Config{Orgs: map[Role]Organization{
		RoleGrower:      {MSPID: "GrowerMSP", Namespace: "ca.grower.winetrace"},
		RoleWinery:      {MSPID: "WineryMSP", Namespace: "ca.winery.winetrace"},
		RoleCarrier:     {MSPID: "CarrierMSP", Namespace: "ca.carrier.winetrace"},
		RoleDistributor: {MSPID: "DistributorMSP", Namespace: "ca.distributor.winetrace"},
		RoleRetailer:    {MSPID: "RetailerMSP", Namespace: "ca.retailer.winetrace"},
		RoleRegulator:   {MSPID: "RegulatorMSP", Namespace: "ca.regulator.winetrace"},
		RoleConsumer:    {MSPID: "ConsumerMSP", Namespace: "ca.consumer.winetrace"},
	}}
}

// MSP returns the MSP ID bound to a role, or "" for an unknown role.
func (c Config) MSP(role Role) string {
	return c.Orgs[role].MSPID
}

// RoleOfMSP resolves a caller's MSP to its role.
func (c Config) RoleOfMSP(mspID string) (Role, bool) {
	for role, org := range c.Orgs {
		if org.MSPID == mspID {
			return role, true
		}
	}
	return "", false
}

// RoleOfIdentity resolves a full client ID to a role via the organization's
// credential namespace.
func (c Config) RoleOfIdentity(id string) (Role, bool) {
	for role, org := range c.Orgs {
		if org.Namespace != "" && strings.Contains(id, org.Namespace) {
			return role, true
		}
	}
	return "", false
}

// KnownMSP reports whether the MSP belongs to any configured organization.
func (c Config) KnownMSP(mspID string) bool {
	_, ok := c.RoleOfMSP(mspID)
	return ok
}

// Identity is the verified caller identity the platform hands to every
// transaction.
type Identity interface {
	// ID returns the full client identity string.
	ID() (string, error)
	// MSPID returns the caller's organizational MSP.
	MSPID() (string, error)
	// Attribute returns a certificate attribute value, if present.
	Attribute(name string) (string, bool, error)
}

// Guard evaluates role and ownership predicates for one caller. Guards run
// before any mutation; a failed guard means no side effect occurred.
type Guard struct {
	cfg Config
	id  Identity
}

func NewGuard(cfg Config, id Identity) *Guard {
	return &Guard{cfg: cfg, id: id}
}

// Caller returns the full client ID.
func (g *Guard) Caller() (string, error) {
	return g.id.ID()
}

// CallerMSP returns the caller's MSP ID.
func (g *Guard) CallerMSP() (string, error) {
	return g.id.MSPID()
}

// Is reports whether the caller belongs to the role's organization.
func (g *Guard) Is(role Role) (bool, error) {
	mspID, err := g.id.MSPID()
	if err != nil {
		return false, err
	}
	return mspID == g.cfg.MSP(role), nil
}

// Enforce fails with Unauthorized unless the caller holds the role.
func (g *Guard) Enforce(role Role) error {
	ok, err := g.Is(role)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Unauthorizedf("%s permissions are required for this operation", role)
	}
	return nil
}

// EnforceAny fails with Unauthorized unless the caller holds one of the
// roles.
func (g *Guard) EnforceAny(roles ...Role) error {
	for _, role := range roles {
		ok, err := g.Is(role)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return errs.Unauthorizedf("caller's organization is not permitted for this operation")
}

// EnforceOwner fails with Unauthorized unless the caller is the asset owner.
func (g *Guard) EnforceOwner(ownerID string) error {
	caller, err := g.id.ID()
	if err != nil {
		return err
	}
	if caller != ownerID {
		return errs.Unauthorizedf("caller is not the owner of this asset")
	}
	return nil
}
