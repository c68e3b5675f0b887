// Package bitcoin checks that the Bitcoin side of a deposit claim is well formed
// for the network the bridge is watching.
package bitcoin

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

// NetworkParams maps a network name to its chain parameters. An empty name or
// "none" disables address validation and returns nil params.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, errors.Errorf("unknown bitcoin network %q", name)
	}
}

// ValidateAddress decodes address and checks that it belongs to params.
func ValidateAddress(address string, params *chaincfg.Params) error {
	if params == nil {
		return nil
	}
	if strings.TrimSpace(address) == "" {
		return errors.New("bitcoin address is required")
	}
	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return errors.Wrapf(err, "invalid bitcoin address %s", address)
	}
	if !decoded.IsForNet(params) {
		return errors.Errorf("bitcoin address %s is not for %s", address, params.Name)
	}
	return nil
}
