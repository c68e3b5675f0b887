package application

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TxParams is the envelope of an unsigned deposit_request transaction.
type TxParams struct {
	ChainID  *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Nonce    uint64
	To       common.Address
	Data     []byte
}

// BuildTransaction assembles an unsigned legacy transaction carrying no value.
func BuildTransaction(p TxParams) (*types.Transaction, error) {
	if p.ChainID == nil || p.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	if p.GasPrice == nil {
		return nil, errors.New("gas price is required")
	}
	if p.GasLimit == 0 {
		return nil, errors.New("gas limit is required")
	}
	to := p.To
	return types.NewTx(&types.LegacyTx{
		Nonce:    p.Nonce,
		GasPrice: new(big.Int).Set(p.GasPrice),
		Gas:      p.GasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     common.CopyBytes(p.Data),
	}), nil
}

// Signer holds the sender's private key. Its address is the account whose
// nonce is fetched, so the two can never disagree.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key, with or without 0x. When expected is
// non-empty it must equal the key's address.
func NewSigner(privateKeyHex, expected string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	if expected != "" && common.HexToAddress(expected) != address {
		return nil, fmt.Errorf("private key belongs to %s, not configured account %s", address.Hex(), expected)
	}
	return &Signer{key: key, address: address}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// Sign applies an EIP-155 signature. Signing is deterministic (RFC 6979), so
// the same key and transaction always produce the same bytes.
func (s *Signer) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), s.key)
	if err != nil {
		return nil, err
	}
	return signed, nil
}

// RawTransaction returns the bytes sent with eth_sendRawTransaction.
func RawTransaction(tx *types.Transaction) ([]byte, error) {
	return tx.MarshalBinary()
}
