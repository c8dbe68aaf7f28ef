package fabricclient

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
	"github.com/pkg/errors"
)

// submitRetries bounds retries on MVCC read conflicts. Concurrent writes to
// the same asset invalidate each other at commit; resubmitting re-reads the
// new state.
const submitRetries = 3

// Client wraps a gateway connection to one channel and resolves the
// role contracts of the traceability chaincode by name.
type Client struct {
	gw        *gateway.Gateway
	network   *gateway.Network
	chaincode string
}

func NewClient(configPath, channelName, chaincodeName, mspID, certPath, keyPath string) (*Client, error) {
	wallet, err := gateway.NewFileSystemWallet("wallet")
	if err != nil {
		return nil, errors.Wrap(err, "creating wallet")
	}

	if !wallet.Exists("appUser") {
		if err := populateWallet(wallet, mspID, certPath, keyPath); err != nil {
			return nil, errors.Wrap(err, "populating wallet")
		}
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(config.FromFile(filepath.Clean(configPath))),
		gateway.WithIdentity(wallet, "appUser"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to gateway")
	}

	network, err := gw.GetNetwork(channelName)
	if err != nil {
		return nil, errors.Wrapf(err, "getting network %s", channelName)
	}

	return &Client{gw: gw, network: network, chaincode: chaincodeName}, nil
}

// Submit invokes a transaction on one of the chaincode's named contracts,
// retrying on MVCC read conflicts.
func (c *Client) Submit(contractName, txName string, args ...string) ([]byte, error) {
	contract := c.network.GetContractWithName(c.chaincode, contractName)

	var result []byte
	var err error
	for attempt := 0; attempt < submitRetries; attempt++ {
		result, err = contract.SubmitTransaction(txName, args...)
		if err == nil || !isMVCCConflict(err) {
			return result, err
		}
		time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
	}
	return result, err
}

// Evaluate runs a read-only query against one of the named contracts.
func (c *Client) Evaluate(contractName, txName string, args ...string) ([]byte, error) {
	contract := c.network.GetContractWithName(c.chaincode, contractName)
	return contract.EvaluateTransaction(txName, args...)
}

func (c *Client) Close() {
	c.gw.Close()
}

func isMVCCConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "MVCC_READ_CONFLICT")
}

func populateWallet(wallet *gateway.Wallet, mspID, certPath, keyPath string) error {
	cert, err := os.ReadFile(filepath.Clean(certPath))
	if err != nil {
		return err
	}

	key, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return err
	}

	identity := gateway.NewX509Identity(mspID, string(cert), string(key))

	return wallet.Put("appUser", identity)
}
