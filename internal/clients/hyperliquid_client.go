package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidClient signing exchange handle plus the address whose account is traded.
type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
	signerAddr  string
}

// NewHyperliquidClient builds an exchange client from a hex private key.
// masterAddress is the queried account when the key belongs to an API wallet;
// empty means the key's own address.
func NewHyperliquidClient(privateKeyHex, baseURL, masterAddress string) (*HyperliquidClient, error) {
	key := strings.TrimSpace(privateKeyHex)
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("invalid hyperliquid private key: %w", err)
	}

	signerAddr, err := addressFromKey(privateKey)
	if err != nil {
		return nil, err
	}

	accountAddr := signerAddr
	if m := strings.TrimSpace(masterAddress); m != "" {
		if !common.IsHexAddress(m) {
			return nil, fmt.Errorf("invalid master address %q", m)
		}
		accountAddr = common.HexToAddress(m).Hex()
	}

	if baseURL == "" {
		baseURL = DefaultHyperliquidURL
	}

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr, signerAddr: signerAddr}, nil
}

func addressFromKey(key *ecdsa.PrivateKey) (string, error) {
	pubECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("error casting public key to ECDSA")
	}
	return crypto.PubkeyToAddress(*pubECDSA).Hex(), nil
}

func (c *HyperliquidClient) Exchange() *hyperliquid.Exchange { return c.exchange }
func (c *HyperliquidClient) Info() *hyperliquid.Info         { return c.exchange.Info() }
func (c *HyperliquidClient) AccountAddress() string          { return c.accountAddr }
func (c *HyperliquidClient) SignerAddress() string           { return c.signerAddr }
