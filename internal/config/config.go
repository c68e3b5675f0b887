package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultChainID        = 8545
	DefaultGasLimit       = 2_000_000
	DefaultGasPriceGwei   = 50
	DefaultABIPath        = "abi/solidity.handler.json"
	DefaultBTCAddress     = "tb1p0d8vtv7c0skytnj9rpps495r4726pasfhj4hxxq4ph5gxjhptpws9q698f"
	DefaultReceiveAddress = "0x940D583861e57ab1c7F83D5a9450323CAe38402b"
	DefaultBTCNetwork     = "testnet"
)

var (
	defaultBTCTxID = big.NewInt(12345678910)
	defaultAmount  = big.NewInt(1000)
)

type Config struct {
	RPCURL         string
	Account        string
	PrivateKey     string
	HandlerAddress string
	ABIPath        string

	ChainID        uint64
	GasLimit       uint64
	GasPriceGwei   uint64
	ReceiptTimeout time.Duration
	PollInterval   time.Duration

	BTCTxID        *big.Int
	BTCAddress     string
	ReceiveAddress string
	Amount         *big.Int
	BTCNetwork     string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	OtelEndpoint  string

	RedisAddr     string
	ClaimTTL      time.Duration
	KafkaBrokers  []string
	KafkaTopic    string
	JournalDriver string
	JournalDSN    string
}

// GasPriceWei converts the configured gwei price into base units.
func (c Config) GasPriceWei() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(c.GasPriceGwei), big.NewInt(1_000_000_000))
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	rpcURL := lookupTrimmed(source, "CHAKRA_RPC_URL")
	if rpcURL == "" {
		return Config{}, errors.New("CHAKRA_RPC_URL is required")
	}
	privateKey := lookupTrimmed(source, "CHAKRA_ACCOUNT_PRIVATE_KEY")
	if privateKey == "" {
		return Config{}, errors.New("CHAKRA_ACCOUNT_PRIVATE_KEY is required")
	}
	account := lookupTrimmed(source, "CHAKRA_ACCOUNT")
	if account != "" && !common.IsHexAddress(account) {
		return Config{}, fmt.Errorf("invalid CHAKRA_ACCOUNT: %q", account)
	}
	handler := lookupTrimmed(source, "CHAKRA_HANDLER_ADDRESS")
	if handler == "" {
		return Config{}, errors.New("CHAKRA_HANDLER_ADDRESS is required")
	}
	if !common.IsHexAddress(handler) {
		return Config{}, fmt.Errorf("invalid CHAKRA_HANDLER_ADDRESS: %q", handler)
	}

	abiPath := lookupTrimmed(source, "ABI_PATH")
	if abiPath == "" {
		abiPath = DefaultABIPath
	}

	chainID, err := parseUintEnv(source, "CHAKRA_CHAIN_ID", DefaultChainID)
	if err != nil {
		return Config{}, err
	}
	gasLimit, err := parseUintEnv(source, "GAS_LIMIT", DefaultGasLimit)
	if err != nil {
		return Config{}, err
	}
	gasPriceGwei, err := parseUintEnv(source, "GAS_PRICE_GWEI", DefaultGasPriceGwei)
	if err != nil {
		return Config{}, err
	}
	receiptTimeout, err := parseDurationEnv(source, "RECEIPT_TIMEOUT", 120*time.Second)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDurationEnv(source, "RECEIPT_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}

	btcTxID, err := parseBigEnv(source, "DEPOSIT_BTC_TXID", defaultBTCTxID)
	if err != nil {
		return Config{}, err
	}
	amount, err := parseBigEnv(source, "DEPOSIT_AMOUNT", defaultAmount)
	if err != nil {
		return Config{}, err
	}
	btcAddress := lookupTrimmed(source, "DEPOSIT_BTC_ADDRESS")
	if btcAddress == "" {
		btcAddress = DefaultBTCAddress
	}
	receiveAddress := lookupTrimmed(source, "DEPOSIT_RECEIVE_ADDRESS")
	if receiveAddress == "" {
		receiveAddress = DefaultReceiveAddress
	}
	if !common.IsHexAddress(receiveAddress) {
		return Config{}, fmt.Errorf("invalid DEPOSIT_RECEIVE_ADDRESS: %q", receiveAddress)
	}
	btcNetwork := DefaultBTCNetwork
	if raw, ok := source.Lookup("BTC_NETWORK"); ok {
		btcNetwork = strings.ToLower(strings.TrimSpace(raw))
	}

	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	claimTTL, err := parseDurationEnv(source, "CLAIM_TTL", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	kafkaTopic := lookupTrimmed(source, "KAFKA_TOPIC")
	if kafkaTopic == "" {
		kafkaTopic = "chakra-deposit-requests"
	}

	journalDriver := strings.ToLower(lookupTrimmed(source, "JOURNAL_DRIVER"))
	journalDSN := lookupTrimmed(source, "JOURNAL_DSN")
	if journalDSN != "" && journalDriver == "" {
		journalDriver = "sqlite"
	}

	return Config{
		RPCURL:         rpcURL,
		Account:        account,
		PrivateKey:     privateKey,
		HandlerAddress: handler,
		ABIPath:        abiPath,
		ChainID:        chainID,
		GasLimit:       gasLimit,
		GasPriceGwei:   gasPriceGwei,
		ReceiptTimeout: receiptTimeout,
		PollInterval:   pollInterval,
		BTCTxID:        btcTxID,
		BTCAddress:     btcAddress,
		ReceiveAddress: receiveAddress,
		Amount:         amount,
		BTCNetwork:     btcNetwork,
		LogLevel:       lookupTrimmed(source, "LOG_LEVEL"),
		LogFile:        lookupTrimmed(source, "LOG_FILE"),
		LogMaxSizeMB:   int(logMaxSize),
		LogMaxBackups:  int(logMaxBackups),
		OtelEndpoint:   lookupTrimmed(source, "OTEL_EXPORTER_OTLP_ENDPOINT"),
		RedisAddr:      lookupTrimmed(source, "REDIS_ADDR"),
		ClaimTTL:       claimTTL,
		KafkaBrokers:   parseList(source, "KAFKA_BROKERS"),
		KafkaTopic:     kafkaTopic,
		JournalDriver:  journalDriver,
		JournalDSN:     journalDSN,
	}, nil
}

func lookupTrimmed(source EnvSource, key string) string {
	raw, _ := source.Lookup(key)
	return strings.TrimSpace(raw)
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}

// parseBigEnv accepts decimal or 0x-prefixed hex integers that fit in a uint256.
func parseBigEnv(source EnvSource, key string, defaultValue *big.Int) (*big.Int, error) {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		return new(big.Int).Set(defaultValue), nil
	}
	value, ok := new(big.Int).SetString(raw, 0)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s: %q", key, raw)
	}
	if value.BitLen() > 256 {
		return nil, fmt.Errorf("invalid %s: exceeds uint256", key)
	}
	return value, nil
}

func parseList(source EnvSource, key string) []string {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}
