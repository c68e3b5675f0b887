package domain

// Receipt represents the node's confirmation that a transaction was included in a block.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	BlockHash   string
	TxIndex     uint64
	Status      uint64
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r Receipt) Succeeded() bool {
	return r.Status == 1
}
