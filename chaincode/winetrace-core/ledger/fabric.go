package ledger

import (
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/pkg/errors"
)

// WrapStub adapts the Fabric chaincode stub to the narrow Stub interface the
// store consumes.
func WrapStub(stub shim.ChaincodeStubInterface) Stub {
	return fabricStub{stub}
}

type fabricStub struct {
	stub shim.ChaincodeStubInterface
}

func (f fabricStub) GetState(key string) ([]byte, error) {
	return f.stub.GetState(key)
}

func (f fabricStub) PutState(key string, value []byte) error {
	return f.stub.PutState(key, value)
}

func (f fabricStub) GetQueryResult(query string) (ResultIterator, error) {
	it, err := f.stub.GetQueryResult(query)
	if err != nil {
		return nil, err
	}
	return fabricResultIterator{it}, nil
}

func (f fabricStub) GetHistoryForKey(key string) (HistoryIterator, error) {
	it, err := f.stub.GetHistoryForKey(key)
	if err != nil {
		return nil, err
	}
	return fabricHistoryIterator{it}, nil
}

func (f fabricStub) TxID() string {
	return f.stub.GetTxID()
}

func (f fabricStub) TxTimestamp() (time.Time, error) {
	ts, err := f.stub.GetTxTimestamp()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "transaction timestamp")
	}
	return ts.AsTime().UTC(), nil
}

type fabricResultIterator struct {
	it shim.StateQueryIteratorInterface
}

func (i fabricResultIterator) HasNext() bool {
	return i.it.HasNext()
}

func (i fabricResultIterator) Next() (KV, error) {
	kv, err := i.it.Next()
	if err != nil {
		return KV{}, err
	}
	return KV{Key: kv.Key, Value: kv.Value}, nil
}

func (i fabricResultIterator) Close() error {
	return i.it.Close()
}

type fabricHistoryIterator struct {
	it shim.HistoryQueryIteratorInterface
}

func (i fabricHistoryIterator) HasNext() bool {
	return i.it.HasNext()
}

func (i fabricHistoryIterator) Next() (Modification, error) {
	km, err := i.it.Next()
	if err != nil {
		return Modification{}, err
	}
	m := Modification{
		TxID:    km.TxId,
		Value:   km.Value,
		Deleted: km.IsDelete,
	}
	if km.Timestamp != nil {
		m.Timestamp = km.Timestamp.AsTime().UTC()
	}
	return m, nil
}

func (i fabricHistoryIterator) Close() error {
	return i.it.Close()
}
