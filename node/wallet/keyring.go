/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

// Package wallet is an in-memory staking keyring. It holds the keys and
// outputs a node stakes with and signs coinstakes, block headers and reward
// commitments on behalf of the minter.
package wallet

import (
	"encoding/hex"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/node/stakepolicy"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

var (
	// ErrUnknownKey is returned when no key of the keyring matches a
	// destination.
	ErrUnknownKey = errors.New("unknown key")

	// ErrUnsupportedScript is returned for outputs the keyring can't
	// spend.
	ErrUnsupportedScript = errors.New("unsupported output script")
)

// KeyData is a private key with the addresses it controls.
type KeyData struct {
	PrivateKey *btcec.PrivateKey
	PubKeyHash *btcutil.AddressPubKeyHash
	WitnessKey *btcutil.AddressWitnessPubKeyHash
}

func newKeyData(key *btcec.PrivateKey, params *chaincfg.Params) (*KeyData, error) {
	hash := btcutil.Hash160(key.PubKey().SerializeCompressed())
	pkh, err := btcutil.NewAddressPubKeyHash(hash, params.AddressParams)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pubkey hash address")
	}
	wpkh, err := btcutil.NewAddressWitnessPubKeyHash(hash, params.AddressParams)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create witness pubkey hash address")
	}
	return &KeyData{PrivateKey: key, PubKeyHash: pkh, WitnessKey: wpkh}, nil
}

// StakeCoin is an output of the keyring that can be staked.
type StakeCoin struct {
	OutPoint wire.OutPoint
	Value    int64
	PkScript []byte
}

// Keyring is an in-memory staking wallet. It is safe for concurrent use.
type Keyring struct {
	params *chaincfg.Params

	mtx          sync.RWMutex
	keys         map[string]*KeyData
	coins        map[wire.OutPoint]StakeCoin
	distribution mining.RewardDistribution
	locked       bool
}

// New returns an empty unlocked keyring.
func New(params *chaincfg.Params) *Keyring {
	return &Keyring{
		params: params,
		keys:   make(map[string]*KeyData),
		coins:  make(map[wire.OutPoint]StakeCoin),
	}
}

// GenerateKey adds a fresh key to the keyring.
func (k *Keyring) GenerateKey() (*KeyData, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to make privKey")
	}
	return k.AddKey(key)
}

// ImportKey adds a hex encoded private key to the keyring.
func (k *Keyring) ImportKey(privateKeyString string) (*KeyData, error) {
	privateKeyBytes, err := hex.DecodeString(privateKeyString)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode private key from hex")
	}
	key, _ := btcec.PrivKeyFromBytes(privateKeyBytes)
	return k.AddKey(key)
}

// ImportWIF adds a WIF encoded private key to the keyring.
func (k *Keyring) ImportWIF(wif string) (*KeyData, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode wif")
	}
	return k.AddKey(decoded.PrivKey)
}

// AddKey adds key to the keyring.
func (k *Keyring) AddKey(key *btcec.PrivateKey) (*KeyData, error) {
	kd, err := newKeyData(key, k.params)
	if err != nil {
		return nil, err
	}

	k.mtx.Lock()
	k.keys[hex.EncodeToString(kd.PubKeyHash.ScriptAddress())] = kd
	k.mtx.Unlock()
	return kd, nil
}

// Lock forbids any signing until Unlock is called.
func (k *Keyring) Lock() {
	k.mtx.Lock()
	k.locked = true
	k.mtx.Unlock()
	log.Info().Msg("Keyring locked")
}

// Unlock allows signing.
func (k *Keyring) Unlock() {
	k.mtx.Lock()
	k.locked = false
	k.mtx.Unlock()
	log.Info().Msg("Keyring unlocked")
}

// IsLocked reports whether signing is forbidden.
func (k *Keyring) IsLocked() bool {
	k.mtx.RLock()
	defer k.mtx.RUnlock()
	return k.locked
}

// key returns the key behind pubKeyHash. The lock must be held.
func (k *Keyring) key(pubKeyHash []byte) (*KeyData, error) {
	if k.locked {
		return nil, mining.ErrSignerUnavailable
	}
	kd, ok := k.keys[hex.EncodeToString(pubKeyHash)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKey, "no key for %x", pubKeyHash)
	}
	return kd, nil
}

// SignHash signs hash with the key behind pubKeyHash.
func (k *Keyring) SignHash(hash chainhash.Hash, pubKeyHash []byte) ([]byte, *btcec.PublicKey, error) {
	k.mtx.RLock()
	kd, err := k.key(pubKeyHash)
	k.mtx.RUnlock()
	if err != nil {
		return nil, nil, err
	}

	sig := ecdsa.Sign(kd.PrivateKey, hash[:])
	return sig.Serialize(), kd.PrivateKey.PubKey(), nil
}

// RewardDistribution returns the share table applied to minted rewards.
func (k *Keyring) RewardDistribution() mining.RewardDistribution {
	k.mtx.RLock()
	defer k.mtx.RUnlock()
	return append(mining.RewardDistribution(nil), k.distribution...)
}

// SetRewardDistribution replaces the share table.
func (k *Keyring) SetRewardDistribution(d mining.RewardDistribution) error {
	if err := d.Validate(); err != nil {
		return err
	}

	k.mtx.Lock()
	k.distribution = append(mining.RewardDistribution(nil), d...)
	k.mtx.Unlock()
	return nil
}

// AddCoin registers an output the keyring can stake. Outputs paying to
// anything but a key hash of the keyring are refused.
func (k *Keyring) AddCoin(coin StakeCoin) error {
	keyHash, ok := stakepolicy.KeyHashDestination(coin.PkScript)
	if !ok {
		return errors.Wrapf(ErrUnsupportedScript, "%v", txscript.GetScriptClass(coin.PkScript))
	}

	k.mtx.Lock()
	defer k.mtx.Unlock()
	if _, ok := k.keys[hex.EncodeToString(keyHash)]; !ok {
		return errors.Wrapf(ErrUnknownKey, "no key for %x", keyHash)
	}
	k.coins[coin.OutPoint] = coin
	return nil
}

// RemoveCoin forgets a spent output.
func (k *Keyring) RemoveCoin(op wire.OutPoint) {
	k.mtx.Lock()
	delete(k.coins, op)
	k.mtx.Unlock()
}

// Coins returns the stakeable outputs, largest first.
func (k *Keyring) Coins() []StakeCoin {
	k.mtx.RLock()
	coins := make([]StakeCoin, 0, len(k.coins))
	for _, c := range k.coins {
		coins = append(coins, c)
	}
	k.mtx.RUnlock()

	sort.Slice(coins, func(i, j int) bool {
		if coins[i].Value != coins[j].Value {
			return coins[i].Value > coins[j].Value
		}
		return coins[i].OutPoint.String() < coins[j].OutPoint.String()
	})
	return coins
}
