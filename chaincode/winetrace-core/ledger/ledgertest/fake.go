// Package ledgertest provides an in-memory Stub for unit tests: a map-backed
// world state with per-key history and a small selector matcher covering the
// equality queries the core issues.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/ledger"
)

// Fake implements ledger.Stub in memory. The zero value is not usable; call
// New.
type Fake struct {
	state   map[string][]byte
	history map[string][]ledger.Modification
	txID    string
	now     time.Time
	seq     int
}

func New() *Fake {
	return &Fake{
		state:   make(map[string][]byte),
		history: make(map[string][]ledger.Modification),
		txID:    "tx-0",
		now:     time.Date(2024, 9, 15, 10, 0, 0, 0, time.UTC),
	}
}

// SetNow pins the transaction timestamp.
func (f *Fake) SetNow(t time.Time) {
	f.now = t.UTC()
}

// Tick advances the clock and starts a new transaction ID, as if the next
// operation ran in a later transaction.
func (f *Fake) Tick() {
	f.seq++
	f.now = f.now.Add(time.Minute)
	f.txID = fmt.Sprintf("tx-%d", f.seq)
}

func (f *Fake) GetState(key string) ([]byte, error) {
	data, ok := f.state[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (f *Fake) PutState(key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	f.state[key] = stored
	f.history[key] = append(f.history[key], ledger.Modification{
		TxID:      f.txID,
		Timestamp: f.now,
		Value:     stored,
	})
	return nil
}

func (f *Fake) GetQueryResult(query string) (ledger.ResultIterator, error) {
	var q struct {
		Selector map[string]interface{} `json:"selector"`
	}
	if err := json.Unmarshal([]byte(query), &q); err != nil {
		return nil, fmt.Errorf("bad selector %q: %v", query, err)
	}

	keys := make([]string, 0, len(f.state))
	for k := range f.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var matches []ledger.KV
	for _, k := range keys {
		var doc map[string]interface{}
		if err := json.Unmarshal(f.state[k], &doc); err != nil {
			continue
		}
		if matchesSelector(doc, q.Selector) {
			matches = append(matches, ledger.KV{Key: k, Value: f.state[k]})
		}
	}
	return &kvIterator{kvs: matches}, nil
}

func matchesSelector(doc map[string]interface{}, selector map[string]interface{}) bool {
	for path, want := range selector {
		got, ok := lookup(doc, path)
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = doc
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (f *Fake) GetHistoryForKey(key string) (ledger.HistoryIterator, error) {
	mods := make([]ledger.Modification, len(f.history[key]))
	copy(mods, f.history[key])
	return &historyIterator{mods: mods}, nil
}

func (f *Fake) TxID() string {
	return f.txID
}

func (f *Fake) TxTimestamp() (time.Time, error) {
	return f.now, nil
}

type kvIterator struct {
	kvs    []ledger.KV
	pos    int
	closed bool
}

func (i *kvIterator) HasNext() bool {
	return i.pos < len(i.kvs)
}

func (i *kvIterator) Next() (ledger.KV, error) {
	if i.pos >= len(i.kvs) {
		return ledger.KV{}, fmt.Errorf("iterator exhausted")
	}
	kv := i.kvs[i.pos]
	i.pos++
	return kv, nil
}

func (i *kvIterator) Close() error {
	i.closed = true
	return nil
}

type historyIterator struct {
	mods []ledger.Modification
	pos  int
}

func (i *historyIterator) HasNext() bool {
	return i.pos < len(i.mods)
}

func (i *historyIterator) Next() (ledger.Modification, error) {
	if i.pos >= len(i.mods) {
		return ledger.Modification{}, fmt.Errorf("iterator exhausted")
	}
	m := i.mods[i.pos]
	i.pos++
	return m, nil
}

func (i *historyIterator) Close() error {
	return nil
}
