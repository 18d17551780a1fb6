// Package chain talks to an EVM node to confirm ICONIC membership payments
// made against the membership contract.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrNotConfigured is returned when no membership contract is set.
	ErrNotConfigured = errors.New("membership contract not configured")

	// ErrRPC wraps failures talking to the node.
	ErrRPC = errors.New("chain rpc failed")
)

// membershipABI is the part of the membership contract the service calls.
const membershipABI = `[
	{"type":"event","name":"UserBecameIconic","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true}]},
	{"type":"function","name":"isIconic","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

var membership = mustParseABI(membershipABI)

// BecameIconicTopic is topic0 of the contract's UserBecameIconic(address) log.
var BecameIconicTopic = membership.Events["UserBecameIconic"].ID

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse membership abi: %v", err))
	}
	return parsed
}

// ValidTxHash reports whether s is a 0x-prefixed 32-byte transaction hash.
func ValidTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

// ValidAddress reports whether s is a 0x-prefixed 20-byte account address.
func ValidAddress(s string) bool {
	return len(s) == 2+2*common.AddressLength && common.IsHexAddress(s) &&
		strings.EqualFold(s[:2], "0x")
}

// Receipt is a mined transaction receipt.
type Receipt = types.Receipt

// Succeeded reports whether the transaction executed without reverting.
func Succeeded(r *Receipt) bool {
	return r != nil && r.Status == types.ReceiptStatusSuccessful
}

// Backend is the subset of *ethclient.Client the oracle uses.
type Backend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client answers membership questions for one contract.
type Client struct {
	backend  Backend
	contract common.Address
	close    func()
}

// New binds backend to the membership contract. The client is unconfigured
// when backend is nil or contract is not an address.
func New(backend Backend, contract string) *Client {
	c := &Client{backend: backend}
	if backend != nil && common.IsHexAddress(contract) {
		c.contract = common.HexToAddress(contract)
	}
	return c
}

// Dial connects to the JSON-RPC endpoint at rpcURL. An empty contract
// yields an unconfigured client without dialing.
func Dial(ctx context.Context, rpcURL, contract string) (*Client, error) {
	if contract == "" {
		return New(nil, ""), nil
	}
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("membership contract %q is not an address", contract)
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	c := New(ec, contract)
	c.close = ec.Close
	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c != nil && c.close != nil {
		c.close()
	}
}

// Configured reports whether a membership contract is bound.
func (c *Client) Configured() bool {
	return c != nil && c.backend != nil && c.contract != (common.Address{})
}

// Receipt fetches the receipt for txHash. It returns nil, nil while the
// transaction is unknown or pending.
func (c *Client) Receipt(ctx context.Context, txHash string) (*Receipt, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	r, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: receipt %s: %v", ErrRPC, txHash, err)
	}
	return r, nil
}

// BecameIconic reports whether r carries a UserBecameIconic log for wallet
// emitted by the membership contract. The address may be indexed (topic 1)
// or the first word of the log data.
func (c *Client) BecameIconic(r *Receipt, wallet string) bool {
	if r == nil || !c.Configured() || !common.IsHexAddress(wallet) {
		return false
	}
	want := common.HexToAddress(wallet)
	for _, l := range r.Logs {
		if l == nil || l.Address != c.contract {
			continue
		}
		if len(l.Topics) == 0 || l.Topics[0] != BecameIconicTopic {
			continue
		}
		if len(l.Topics) > 1 && common.BytesToAddress(l.Topics[1].Bytes()) == want {
			return true
		}
		if len(l.Data) >= common.HashLength && common.BytesToAddress(l.Data[:common.HashLength]) == want {
			return true
		}
	}
	return false
}

// IsIconic asks the contract whether wallet currently holds membership.
func (c *Client) IsIconic(ctx context.Context, wallet string) (bool, error) {
	if !c.Configured() {
		return false, ErrNotConfigured
	}
	data, err := membership.Pack("isIconic", common.HexToAddress(wallet))
	if err != nil {
		return false, fmt.Errorf("pack isIconic: %w", err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("%w: isIconic: %v", ErrRPC, err)
	}
	vals, err := membership.Unpack("isIconic", out)
	if err != nil {
		return false, fmt.Errorf("%w: decode isIconic: %v", ErrRPC, err)
	}
	ok, _ := vals[0].(bool)
	return ok, nil
}
