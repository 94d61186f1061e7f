package provider

// The bridged JSON-RPC method set. Dispatch is a static table built at
// construction; anything outside this list fails with ErrUnsupportedMethod.
const (
	MethodEthAccounts                    = "eth_accounts"
	MethodEthBlockNumber                 = "eth_blockNumber"
	MethodEthCall                        = "eth_call"
	MethodEthEstimateGas                 = "eth_estimateGas"
	MethodEthGasPrice                    = "eth_gasPrice"
	MethodEthGetBlockByHash              = "eth_getBlockByHash"
	MethodEthGetBlockByNumber            = "eth_getBlockByNumber"
	MethodEthGetCode                     = "eth_getCode"
	MethodEthGetFilterChanges            = "eth_getFilterChanges"
	MethodEthGetLogs                     = "eth_getLogs"
	MethodEthGetTransactionByHash        = "eth_getTransactionByHash"
	MethodEthGetTransactionReceipt       = "eth_getTransactionReceipt"
	MethodEthNewBlockFilter              = "eth_newBlockFilter"
	MethodEthNewFilter                   = "eth_newFilter"
	MethodEthNewPendingTransactionFilter = "eth_newPendingTransactionFilter"
	MethodEthSendTransaction             = "eth_sendTransaction"
	MethodEthSign                        = "eth_sign"
	MethodEthSubscribe                   = "eth_subscribe"
	MethodEthUninstallFilter             = "eth_uninstallFilter"
	MethodEthUnsubscribe                 = "eth_unsubscribe"
	MethodNetVersion                     = "net_version"
)

func (p *Provider) methodTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		MethodEthAccounts:                    p.ethAccounts,
		MethodEthBlockNumber:                 p.ethBlockNumber,
		MethodEthCall:                        p.ethCall,
		MethodEthEstimateGas:                 p.ethEstimateGas,
		MethodEthGasPrice:                    p.ethGasPrice,
		MethodEthGetBlockByHash:              p.ethGetBlockByHash,
		MethodEthGetBlockByNumber:            p.ethGetBlockByNumber,
		MethodEthGetCode:                     p.ethGetCode,
		MethodEthGetFilterChanges:            p.ethGetFilterChanges,
		MethodEthGetLogs:                     p.ethGetLogs,
		MethodEthGetTransactionByHash:        p.ethGetTransactionByHash,
		MethodEthGetTransactionReceipt:       p.ethGetTransactionReceipt,
		MethodEthNewBlockFilter:              p.ethNewBlockFilter,
		MethodEthNewFilter:                   p.ethNewFilter,
		MethodEthNewPendingTransactionFilter: p.ethNewPendingTransactionFilter,
		MethodEthSendTransaction:             p.ethSendTransaction,
		MethodEthSign:                        p.ethSign,
		MethodEthSubscribe:                   p.ethSubscribe,
		MethodEthUninstallFilter:             p.ethUninstallFilter,
		MethodEthUnsubscribe:                 p.ethUnsubscribe,
		MethodNetVersion:                     p.netVersionHandler,
	}
}
