// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcast

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/poi"
)

// RequiredVersion is the accepted broadcaster major version. Fee messages
// from other majors are dropped.
const RequiredVersion = "8"

// feeStalenessTimeout resubscribes when no fee message arrives for this long.
const feeStalenessTimeout = 90 * time.Second

// FeeMessageData is the decoded content of a fee message.
type FeeMessageData struct {
	// Fees maps checksummed token address to fee per unit gas (hex).
	Fees map[string]string `json:"fees"`
	// FeeExpiration is the unix timestamp the fees lapse at.
	FeeExpiration uint64 `json:"feeExpiration"`
	FeesID        string `json:"feesID"`
	// RailgunAddress is the broadcaster's shielded address.
	RailgunAddress string  `json:"railgunAddress"`
	Identifier     *string `json:"identifier"`
	// AvailableWallets is the number of free broadcast wallets.
	AvailableWallets uint32 `json:"availableWallets"`
	// Version is the broadcaster version, e.g. "8.0.0".
	Version string `json:"version"`
	// RelayAdapt is the relay adapt contract address.
	RelayAdapt string `json:"relayAdapt"`
	// RequiredPOIListKeys are the lists the broadcaster needs proofs for.
	RequiredPOIListKeys []poi.ListKey `json:"requiredPOIListKeys"`
	// Reliability is the broadcaster's score in [0, 1].
	Reliability float64 `json:"reliability"`
}

// feeMessage is the wire wrapper: hex-encoded JSON plus a signature.
type feeMessage struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

type broadcasterData struct {
	railgunAddress address.Address
	identifier     *string
	listKeys       []poi.ListKey
	tokenFees      map[common.Address]tokenFeeData
}

type tokenFeeData struct {
	feePerUnitGas    uint256.Int
	expiration       uint64
	feesID           string
	availableWallets uint32
	relayAdapt       common.Address
	reliability      uint32
}

// Manager subscribes to broadcaster fee messages and selects the best
// broadcaster per token.
type Manager struct {
	chainID   uint64
	transport Transport

	mu           sync.Mutex
	broadcasters map[address.Address]broadcasterData

	// whitelist restricts selection when non-empty.
	whitelist []address.Address

	log log.Logger
}

// NewManager builds a manager over a transport.
func NewManager(chainID uint64, transport Transport, whitelist []address.Address, logger log.Logger) *Manager {
	logger.Info("creating broadcaster manager", "chainId", chainID, "whitelisted", len(whitelist))
	return &Manager{
		chainID:      chainID,
		transport:    transport,
		broadcasters: make(map[address.Address]broadcasterData),
		whitelist:    whitelist,
		log:          logger,
	}
}

// ChainID returns the manager's chain.
func (m *Manager) ChainID() uint64 {
	return m.chainID
}

// Start listens for fee messages until ctx is cancelled, resubscribing
// with exponential backoff when the stream closes or goes stale.
func (m *Manager) Start(ctx context.Context) error {
	topic := FeeContentTopic(m.chainID)
	backoff := time.Second
	const maxBackoff = 60 * time.Second

	for {
		stream, err := m.transport.Subscribe(ctx, []string{topic})
		if err != nil {
			return err
		}
		m.log.Info("subscribed to broadcaster fee topic", "topic", topic)

	receive:
		for {
			select {
			case msg, ok := <-stream:
				if !ok {
					break receive
				}
				backoff = time.Second
				if err := m.handleFeeMessage(&msg); err != nil {
					m.log.Warn("error handling fee message", "err", err)
				}
			case <-time.After(feeStalenessTimeout):
				m.log.Warn("no fee messages received, resubscribing", "timeout", feeStalenessTimeout)
				break receive
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		m.log.Warn("broadcaster fee subscription ended, reconnecting", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// BestBroadcasterForToken selects the live broadcaster with the lowest
// unexpired fee for the token and at least one free wallet, breaking ties
// by descending reliability.
func (m *Manager) BestBroadcasterForToken(token common.Address, currentTime uint64) *Broadcaster {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bestData *broadcasterData
	var bestFee *tokenFeeData

	for addr := range m.broadcasters {
		data := m.broadcasters[addr]
		if len(m.whitelist) > 0 && !containsAddress(m.whitelist, data.railgunAddress) {
			continue
		}

		fee, ok := data.tokenFees[token]
		if !ok || fee.expiration <= currentTime || fee.availableWallets == 0 {
			continue
		}

		better := bestFee == nil
		if !better {
			switch fee.feePerUnitGas.Cmp(&bestFee.feePerUnitGas) {
			case -1:
				better = true
			case 0:
				better = fee.reliability > bestFee.reliability
			}
		}
		if better {
			d, f := data, fee
			bestData, bestFee = &d, &f
		}
	}

	if bestData == nil {
		return nil
	}

	return NewBroadcaster(m.transport, m.chainID, bestData.railgunAddress, bestData.identifier, poi.Fee{
		Token:            token,
		PerUnitGas:       bestFee.feePerUnitGas,
		Recipient:        bestData.railgunAddress,
		Expiration:       bestFee.expiration,
		FeesID:           bestFee.feesID,
		AvailableWallets: bestFee.availableWallets,
		RelayAdapt:       bestFee.relayAdapt,
		Reliability:      bestFee.reliability,
		ListKeys:         append([]poi.ListKey(nil), bestData.listKeys...),
	}, m.log)
}

func (m *Manager) handleFeeMessage(msg *Message) error {
	feeData, err := decodeFeeMessage(msg.Payload)
	if err != nil {
		return err
	}

	major := feeData.Version
	if idx := strings.IndexByte(major, '.'); idx >= 0 {
		major = major[:idx]
	}
	if major != RequiredVersion {
		return fmt.Errorf("broadcast: incompatible broadcaster version %q, expected major %s",
			feeData.Version, RequiredVersion)
	}

	railgunAddr, err := address.Parse(feeData.RailgunAddress)
	if err != nil {
		return fmt.Errorf("broadcast: invalid broadcaster address: %w", err)
	}

	tokenFees := make(map[common.Address]tokenFeeData, len(feeData.Fees))
	for tokenStr, feeHex := range feeData.Fees {
		if !common.IsHexAddress(tokenStr) {
			continue
		}
		fee, err := parseHexFee(feeHex)
		if err != nil {
			m.log.Warn("invalid fee value", "token", tokenStr, "err", err)
			continue
		}
		tokenFees[common.HexToAddress(tokenStr)] = tokenFeeData{
			feePerUnitGas:    fee,
			expiration:       feeData.FeeExpiration,
			feesID:           feeData.FeesID,
			availableWallets: feeData.AvailableWallets,
			relayAdapt:       common.HexToAddress(feeData.RelayAdapt),
			reliability:      uint32(feeData.Reliability * 100),
		}
	}

	data := broadcasterData{
		railgunAddress: railgunAddr,
		identifier:     feeData.Identifier,
		listKeys:       feeData.RequiredPOIListKeys,
		tokenFees:      tokenFees,
	}

	m.log.Info("received fee update", "address", feeData.RailgunAddress, "tokens", len(tokenFees))

	m.mu.Lock()
	m.broadcasters[railgunAddr] = data
	m.mu.Unlock()
	return nil
}

func decodeFeeMessage(payload []byte) (*FeeMessageData, error) {
	var msg feeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("broadcast: invalid fee message json: %w", err)
	}

	dataBytes, err := hex.DecodeString(strings.TrimPrefix(msg.Data, "0x"))
	if err != nil {
		return nil, fmt.Errorf("broadcast: invalid fee message hex: %w", err)
	}

	var feeData FeeMessageData
	if err := json.Unmarshal(dataBytes, &feeData); err != nil {
		return nil, fmt.Errorf("broadcast: invalid fee data json: %w", err)
	}
	return &feeData, nil
}

func parseHexFee(s string) (uint256.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	v, err := uint256.FromHex("0x" + s)
	if err != nil {
		return uint256.Int{}, err
	}
	return *v, nil
}

func containsAddress(list []address.Address, addr address.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
