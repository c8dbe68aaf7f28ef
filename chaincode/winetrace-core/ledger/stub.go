// Package ledger provides the CRUD primitives every other component is built
// on. It consumes only a narrow slice of the chaincode stub, so the store can
// run against the real Fabric stub or an in-memory fake in tests.
package ledger

import "time"

// KV is one key/value pair from a range or rich query.
type KV struct {
	Key   string
	Value []byte
}

// Modification is one entry of a key's committed history.
type Modification struct {
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`
	Value     []byte    `json:"value"`
	Deleted   bool      `json:"deleted"`
}

// ResultIterator yields rich-query results. It is forward-only and finite,
// and must be closed on every exit path.
type ResultIterator interface {
	HasNext() bool
	Next() (KV, error)
	Close() error
}

// HistoryIterator yields a key's committed history, oldest first.
type HistoryIterator interface {
	HasNext() bool
	Next() (Modification, error)
	Close() error
}

// Stub is the slice of the ledger runtime the store consumes: point reads and
// writes, rich queries, per-key history, and the transaction's identity and
// timestamp. Writes are buffered by the platform and committed atomically
// with the transaction.
type Stub interface {
	GetState(key string) ([]byte, error)
	PutState(key string, value []byte) error
	GetQueryResult(query string) (ResultIterator, error)
	GetHistoryForKey(key string) (HistoryIterator, error)
	TxID() string
	TxTimestamp() (time.Time, error)
}
