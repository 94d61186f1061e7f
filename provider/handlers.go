package provider

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	errorsmod "cosmossdk.io/errors"

	"github.com/dappchain/evmbridge/client"
	"github.com/dappchain/evmbridge/crypto"
	"github.com/dappchain/evmbridge/retry"
	"github.com/dappchain/evmbridge/types"
	"github.com/dappchain/evmbridge/vm"
)

// txArgs is the transaction object of eth_sendTransaction and eth_call.
type txArgs struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// parseParams unpacks a JSON-RPC positional parameter list into the given
// targets. Missing trailing parameters leave their targets untouched.
func parseParams(raw json.RawMessage, targets ...interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return errors.Wrap(err, "malformed params")
	}
	for i, target := range targets {
		if i >= len(list) || string(list[i]) == "null" {
			break
		}
		if err := json.Unmarshal(list[i], target); err != nil {
			return errors.Wrapf(err, "malformed param %d", i)
		}
	}
	return nil
}

func (p *Provider) ethAccounts(context.Context, json.RawMessage) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.accountOrder) == 0 {
		return nil, ErrNoAccounts
	}
	accounts := make([]string, len(p.accountOrder))
	copy(accounts, p.accountOrder)
	return accounts, nil
}

func (p *Provider) ethBlockNumber(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	height, err := p.client.BlockHeight(ctx)
	if err != nil {
		return nil, err
	}
	return hexutil.EncodeUint64(height), nil
}

func (p *Provider) ethCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args txArgs
	if err := parseParams(params, &args); err != nil {
		return nil, err
	}
	to, err := p.addressFromHex(args.To)
	if err != nil {
		return nil, errors.Wrap(err, "call target")
	}
	input, err := types.DecodeHex(args.Data)
	if err != nil {
		return nil, errors.Wrap(err, "call input")
	}

	var caller *types.Address
	if args.From != "" {
		from, err := p.addressFromHex(args.From)
		if err != nil {
			return nil, errors.Wrap(err, "caller")
		}
		caller = &from
	}

	ret, err := p.client.Query(ctx, to, input, vm.VMTypeEVM, caller)
	if err != nil {
		return nil, err
	}
	// callers expect a hex string, never null
	return types.EncodeHex(ret), nil
}

// The chain has no gas market; these answer null so tooling that probes them
// keeps going.
func (p *Provider) ethEstimateGas(context.Context, json.RawMessage) (interface{}, error) {
	return nil, nil
}

func (p *Provider) ethGasPrice(context.Context, json.RawMessage) (interface{}, error) {
	return nil, nil
}

func (p *Provider) ethGetBlockByHash(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var hashHex string
	if err := parseParams(params, &hashHex); err != nil {
		return nil, err
	}
	hash, err := types.DecodeHex(hashHex)
	if err != nil {
		return nil, errors.Wrap(err, "block hash")
	}
	info, err := p.client.BlockByHash(ctx, hash, blockTxObjects)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return p.formatBlock(info, blockTxObjects)
}

func (p *Provider) ethGetBlockByNumber(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var numberParam string
	if err := parseParams(params, &numberParam); err != nil {
		return nil, err
	}
	number, err := normalizeBlockNumber(numberParam)
	if err != nil {
		return nil, err
	}
	info, err := p.client.BlockByNumber(ctx, number, blockTxObjects)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return p.formatBlock(info, blockTxObjects)
}

func (p *Provider) ethGetCode(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var addrHex string
	if err := parseParams(params, &addrHex); err != nil {
		return nil, err
	}
	contract, err := p.addressFromHex(addrHex)
	if err != nil {
		return nil, errors.Wrap(err, "contract address")
	}
	code, err := p.client.Code(ctx, contract)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, errorsmod.Wrapf(client.ErrNotFound, "no code at %s", strings.ToLower(addrHex))
	}
	return types.EncodeHex(code), nil
}

func (p *Provider) ethGetFilterChanges(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var id string
	if err := parseParams(params, &id); err != nil {
		return nil, err
	}
	env, err := p.client.FilterChanges(ctx, id)
	if err != nil {
		return nil, err
	}
	return formatFilterEnvelope(env), nil
}

func (p *Provider) ethGetLogs(ctx context.Context, params json.RawMessage) (interface{}, error) {
	filter, err := filterParam(params)
	if err != nil {
		return nil, err
	}
	list, err := p.client.Logs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return formatFilterLogList(list), nil
}

func (p *Provider) ethGetTransactionByHash(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var hashHex string
	if err := parseParams(params, &hashHex); err != nil {
		return nil, err
	}
	hash, err := types.DecodeHex(hashHex)
	if err != nil {
		return nil, errors.Wrap(err, "transaction hash")
	}
	tx, err := p.client.TxByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errorsmod.Wrapf(client.ErrNotFound, "transaction %s", strings.ToLower(hashHex))
	}
	return formatTxObject(tx), nil
}

func (p *Provider) ethGetTransactionReceipt(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var hashHex string
	if err := parseParams(params, &hashHex); err != nil {
		return nil, err
	}
	hash, err := types.DecodeHex(hashHex)
	if err != nil {
		return nil, errors.Wrap(err, "transaction hash")
	}

	// the receipt may not exist yet right after commit; poll under the
	// lookup policy, treating an explicitly-empty receipt as still pending
	receipt, err := retry.DoWithData(ctx, p.lookupPolicy, isNotFound, func() (*vm.EvmTxReceipt, error) {
		r, err := p.client.TxReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if r == nil || r.IsEmpty() {
			return nil, errorsmod.Wrapf(client.ErrNotFound, "receipt %s", strings.ToLower(hashHex))
		}
		return r, nil
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.formatReceipt(receipt), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, client.ErrNotFound)
}

func (p *Provider) ethNewBlockFilter(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return p.client.NewBlockFilter(ctx)
}

func (p *Provider) ethNewFilter(ctx context.Context, params json.RawMessage) (interface{}, error) {
	filter, err := filterParam(params)
	if err != nil {
		return nil, err
	}
	return p.client.NewFilter(ctx, filter)
}

func (p *Provider) ethNewPendingTransactionFilter(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return p.client.NewPendingTxFilter(ctx)
}

func (p *Provider) ethSendTransaction(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args txArgs
	if err := parseParams(params, &args); err != nil {
		return nil, err
	}

	fromKey := strings.ToLower(args.From)
	mw, ok := p.middlewareFor(fromKey)
	if !ok {
		return nil, errorsmod.Wrapf(ErrUnknownAccount, "%s", fromKey)
	}
	from, err := p.addressFromHex(args.From)
	if err != nil {
		return nil, errors.Wrap(err, "sender")
	}
	data, err := types.DecodeHex(args.Data)
	if err != nil {
		return nil, errors.Wrap(err, "transaction data")
	}

	var ret []byte
	if args.To == "" {
		// no target: a contract deployment against the zero address
		ret, err = p.client.DeployContract(ctx, from, data, mw)
	} else {
		var to types.Address
		to, err = p.addressFromHex(args.To)
		if err != nil {
			return nil, errors.Wrap(err, "recipient")
		}
		var valueBytes []byte
		if valueBytes, err = types.DecodeHex(args.Value); err != nil {
			return nil, errors.Wrap(err, "transaction value")
		}
		ret, err = p.client.CallContract(ctx, from, to, data, new(big.Int).SetBytes(valueBytes), mw)
	}
	if err != nil {
		return nil, err
	}
	return types.EncodeHex(ret), nil
}

func (p *Provider) ethSign(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var addrHex, msgHex string
	if err := parseParams(params, &addrHex, &msgHex); err != nil {
		return nil, err
	}
	priv, ok := p.accountKey(strings.ToLower(addrHex))
	if !ok {
		return nil, errorsmod.Wrapf(ErrUnknownAccount, "%s", strings.ToLower(addrHex))
	}
	msg, err := types.DecodeHex(msgHex)
	if err != nil {
		return nil, errors.Wrap(err, "message")
	}
	sig, err := crypto.EthSign(priv, msg)
	if err != nil {
		return nil, err
	}
	return hexutil.Encode(sig), nil
}

func (p *Provider) ethSubscribe(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var list []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &list); err != nil {
			return nil, errors.Wrap(err, "malformed params")
		}
	}
	var method string
	if len(list) > 0 {
		if err := json.Unmarshal(list[0], &method); err != nil {
			return nil, errors.Wrap(err, "subscription type")
		}
	}
	filter := "{}"
	if len(list) > 1 && string(list[1]) != "null" {
		filter = string(list[1])
	}
	return p.client.Subscribe(ctx, method, filter)
}

func (p *Provider) ethUninstallFilter(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var id string
	if err := parseParams(params, &id); err != nil {
		return nil, err
	}
	return p.client.UninstallFilter(ctx, id)
}

func (p *Provider) ethUnsubscribe(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var id string
	if err := parseParams(params, &id); err != nil {
		return nil, err
	}
	return p.client.Unsubscribe(ctx, id)
}

func (p *Provider) netVersionHandler(context.Context, json.RawMessage) (interface{}, error) {
	return p.netVersion, nil
}

// addressFromHex scopes a bare 0x address to this provider's chain.
func (p *Provider) addressFromHex(addrHex string) (types.Address, error) {
	local, err := types.LocalAddressFromHex(addrHex)
	if err != nil {
		return types.Address{}, err
	}
	return types.NewAddress(p.client.ChainID(), local), nil
}

// filterParam renders the first positional parameter, an Ethereum filter
// object, as the JSON string the chain's filter parser accepts.
func filterParam(params json.RawMessage) (string, error) {
	var list []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &list); err != nil {
			return "", errors.Wrap(err, "malformed params")
		}
	}
	if len(list) == 0 || string(list[0]) == "null" {
		return "{}", nil
	}
	return string(list[0]), nil
}
