package access

import "github.com/hyperledger/fabric-chaincode-go/pkg/cid"

// WrapIdentity adapts the Fabric client identity to the Identity interface.
func WrapIdentity(ci cid.ClientIdentity) Identity {
	return fabricIdentity{ci}
}

type fabricIdentity struct {
	ci cid.ClientIdentity
}

func (f fabricIdentity) ID() (string, error) {
	return f.ci.GetID()
}

func (f fabricIdentity) MSPID() (string, error) {
	return f.ci.GetMSPID()
}

func (f fabricIdentity) Attribute(name string) (string, bool, error) {
	return f.ci.GetAttributeValue(name)
}
