package lightnode

// TxPriority mirrors celestia-node/state.TxPriority to preserve JSON compatibility.
type TxPriority int

const (
	TxPriorityLow TxPriority = iota + 1
	TxPriorityMedium
	TxPriorityHigh
)

// SubmitOptions is a pared-down copy of celestia-node/state.TxConfig JSON shape.
type SubmitOptions struct {
	GasPrice      float64    `json:"gas_price,omitempty"`
	IsGasPriceSet bool       `json:"is_gas_price_set,omitempty"`
	Gas           uint64     `json:"gas,omitempty"`
	TxPriority    TxPriority `json:"tx_priority,omitempty"`
	KeyName       string     `json:"key_name,omitempty"`
	SignerAddress string     `json:"signer_address,omitempty"`
}
