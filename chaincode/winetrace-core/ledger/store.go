package ledger

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/errs"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/model"
)

// MaxQueryResults bounds every rich-query and history scan. Unbounded
// iteration risks the platform's execution deadline and widens the read-set,
// raising the chance of an MVCC conflict at commit.
const MaxQueryResults = 1000

// Store exposes typed CRUD over the ledger's key-value space. All writes are
// whole-object JSON overwrites at the key equal to the document ID.
type Store struct {
	stub Stub
}

func NewStore(stub Stub) *Store {
	return &Store{stub: stub}
}

// TxID returns the enclosing transaction's ID.
func (s *Store) TxID() string {
	return s.stub.TxID()
}

// Now returns the transaction timestamp. Every endorser sees the same value,
// so history entries and validity checks stay deterministic.
func (s *Store) Now() (time.Time, error) {
	return s.stub.TxTimestamp()
}

// Exists reports whether any document is stored under the ID.
func (s *Store) Exists(id string) (bool, error) {
	data, err := s.stub.GetState(id)
	if err != nil {
		return false, errors.Wrapf(err, "reading %s", id)
	}
	return len(data) > 0, nil
}

func (s *Store) get(id string, out interface{}) error {
	data, err := s.stub.GetState(id)
	if err != nil {
		return errors.Wrapf(err, "reading %s", id)
	}
	if len(data) == 0 {
		return errs.NotFoundf("%s does not exist", id)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decoding %s", id)
	}
	return nil
}

func (s *Store) put(id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", id)
	}
	if err := s.stub.PutState(id, data); err != nil {
		return errors.Wrapf(err, "writing %s", id)
	}
	return nil
}

func (s *Store) create(id string, doc interface{}) error {
	exists, err := s.Exists(id)
	if err != nil {
		return err
	}
	if exists {
		return errs.AlreadyExistsf("%s already exists", id)
	}
	return s.put(id, doc)
}

func (s *Store) update(id string, doc interface{}) error {
	exists, err := s.Exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return errs.NotFoundf("%s does not exist", id)
	}
	return s.put(id, doc)
}

// GetAsset reads an asset envelope. A document of another kind under the
// same ID counts as absent.
func (s *Store) GetAsset(id string) (*model.Asset, error) {
	var a model.Asset
	if err := s.get(id, &a); err != nil {
		return nil, err
	}
	if a.DocType != model.DocAsset {
		return nil, errs.NotFoundf("asset %s does not exist", id)
	}
	return &a, nil
}

// CreateAsset validates and writes a new asset.
func (s *Store) CreateAsset(a *model.Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return s.create(a.ID, a)
}

// UpdateAsset validates and overwrites an existing asset.
func (s *Store) UpdateAsset(a *model.Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return s.update(a.ID, a)
}

func (s *Store) GetShipment(id string) (*model.Shipment, error) {
	var sh model.Shipment
	if err := s.get(id, &sh); err != nil {
		return nil, err
	}
	if sh.DocType != model.DocShipment {
		return nil, errs.NotFoundf("shipment %s does not exist", id)
	}
	return &sh, nil
}

func (s *Store) CreateShipment(sh *model.Shipment) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	return s.create(sh.ID, sh)
}

func (s *Store) UpdateShipment(sh *model.Shipment) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	return s.update(sh.ID, sh)
}

func (s *Store) GetCertificate(id string) (*model.CertificateInfo, error) {
	var c model.CertificateInfo
	if err := s.get(id, &c); err != nil {
		return nil, err
	}
	if c.DocType != model.DocCertificate {
		return nil, errs.NotFoundf("certificate %s does not exist", id)
	}
	return &c, nil
}

func (s *Store) CreateCertificate(c *model.CertificateInfo) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.create(c.ID, c)
}

func (s *Store) UpdateCertificate(c *model.CertificateInfo) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.update(c.ID, c)
}

func (s *Store) GetTransport(id string) (*model.TransportRecord, error) {
	var t model.TransportRecord
	if err := s.get(id, &t); err != nil {
		return nil, err
	}
	if t.DocType != model.DocTransport {
		return nil, errs.NotFoundf("transport %s does not exist", id)
	}
	return &t, nil
}

func (s *Store) CreateTransport(t *model.TransportRecord) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.create(t.ID, t)
}

func (s *Store) UpdateTransport(t *model.TransportRecord) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.update(t.ID, t)
}

// Selector builds a rich-query selector from field/value pairs. Values are
// JSON-encoded, so IDs with special characters cannot break the query.
func Selector(fields map[string]interface{}) string {
	q, _ := json.Marshal(map[string]interface{}{"selector": fields})
	return string(q)
}

// queryRaw drains a bounded rich query, closing the iterator on every path.
// Result order is whatever the ledger returns; callers sort if order matters.
func (s *Store) queryRaw(selector string) ([][]byte, error) {
	it, err := s.stub.GetQueryResult(selector)
	if err != nil {
		return nil, errors.Wrap(err, "rich query")
	}
	defer it.Close()

	var values [][]byte
	for it.HasNext() && len(values) < MaxQueryResults {
		kv, err := it.Next()
		if err != nil {
			return nil, errors.Wrap(err, "iterating query results")
		}
		if len(kv.Value) > 0 {
			values = append(values, kv.Value)
		}
	}
	return values, nil
}

// QueryAssets runs a caller-defined selector and decodes asset envelopes.
func (s *Store) QueryAssets(selector string) ([]*model.Asset, error) {
	values, err := s.queryRaw(selector)
	if err != nil {
		return nil, err
	}
	assets := make([]*model.Asset, 0, len(values))
	for _, v := range values {
		var a model.Asset
		if err := json.Unmarshal(v, &a); err != nil {
			return nil, errors.Wrap(err, "decoding queried asset")
		}
		assets = append(assets, &a)
	}
	return assets, nil
}

// QueryShipments runs a caller-defined selector and decodes shipments.
func (s *Store) QueryShipments(selector string) ([]*model.Shipment, error) {
	values, err := s.queryRaw(selector)
	if err != nil {
		return nil, err
	}
	shipments := make([]*model.Shipment, 0, len(values))
	for _, v := range values {
		var sh model.Shipment
		if err := json.Unmarshal(v, &sh); err != nil {
			return nil, errors.Wrap(err, "decoding queried shipment")
		}
		shipments = append(shipments, &sh)
	}
	return shipments, nil
}

// QueryTransports runs a caller-defined selector and decodes transports.
func (s *Store) QueryTransports(selector string) ([]*model.TransportRecord, error) {
	values, err := s.queryRaw(selector)
	if err != nil {
		return nil, err
	}
	records := make([]*model.TransportRecord, 0, len(values))
	for _, v := range values {
		var t model.TransportRecord
		if err := json.Unmarshal(v, &t); err != nil {
			return nil, errors.Wrap(err, "decoding queried transport")
		}
		records = append(records, &t)
	}
	return records, nil
}

// History returns the committed modification history of a key, oldest first,
// bounded like every other scan.
func (s *Store) History(id string) ([]Modification, error) {
	it, err := s.stub.GetHistoryForKey(id)
	if err != nil {
		return nil, errors.Wrapf(err, "history of %s", id)
	}
	defer it.Close()

	var mods []Modification
	for it.HasNext() && len(mods) < MaxQueryResults {
		m, err := it.Next()
		if err != nil {
			return nil, errors.Wrapf(err, "iterating history of %s", id)
		}
		mods = append(mods, m)
	}
	return mods, nil
}
