// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package forwarder implements a gas-abstracted meta-transaction
// authorizer. A relayer submits a signed envelope on behalf of a user;
// the forwarder verifies the signature, nonce, deadline and payload
// integrity, dispatches the inner call to its target, and settles the
// relaying fee in the token the user authorized.
package forwarder

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
	"github.com/zeebo/blake3"

	"github.com/luxfi/exchange/contract"
	"github.com/luxfi/exchange/eip712"
)

var (
	ErrNotOwner                = errors.New("caller is not the owner")
	ErrUnauthorizedRelayer     = errors.New("unauthorized relayer")
	ErrReentrancy              = errors.New("reentrant call")
	ErrExpired                 = errors.New("expired deadline")
	ErrInvalidNonce            = errors.New("invalid nonce")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrFeeExceedsAuthorization = errors.New("fee exceeds authorized maximum")
	ErrPayloadMismatch         = errors.New("payload hash mismatch")
	ErrInsufficientFeeBalance  = errors.New("insufficient balance for fee")
	ErrZeroAddress             = errors.New("zero address")
)

const forwarderType = "Forwarder(address from,address feeToken,uint256 maxTokenAmount,uint256 deadline,uint256 nonce,bytes data,bytes32 hashedPayload)"

// Fee accounting defaults, in abstract execution units.
const (
	DefaultBaseUnits     = 21000
	DefaultTransferUnits = 65000
)

// MetaStatus event: MetaStatus(address indexed from, bool success, string reason)
var MetaStatusSig = common.Hash(crypto.Keccak256Hash([]byte("MetaStatus(address,bool,string)")))

const noncePrefix = "nonce"

// Target is the contract a forwarder dispatches verified envelopes to.
// HashPayload recomputes the canonical digest of the action carried in
// data; Execute performs it on behalf of from.
type Target interface {
	HashPayload(data []byte) (common.Hash, error)
	Execute(st contract.Backend, from common.Address, data []byte) error
}

// MetaTx is the signed envelope a relayer submits.
type MetaTx struct {
	From           common.Address
	FeeToken       common.Address
	MaxTokenAmount *big.Int
	Deadline       uint64
	Nonce          uint64
	Data           []byte
	HashedPayload  common.Hash
}

// Forwarder verifies and dispatches meta-transaction envelopes.
type Forwarder struct {
	mu     sync.Mutex
	locked bool

	addr      common.Address
	owner     common.Address
	feeHolder common.Address
	relayers  map[common.Address]bool
	nonces    map[common.Hash]uint64

	baseUnits     uint64
	transferUnits uint64

	target Target
}

// NewForwarder returns a forwarder bound to target. The owner starts
// out as the sole fee holder and must enroll relayers explicitly.
func NewForwarder(addr, owner common.Address, target Target) *Forwarder {
	return &Forwarder{
		addr:          addr,
		owner:         owner,
		feeHolder:     owner,
		relayers:      make(map[common.Address]bool),
		nonces:        make(map[common.Hash]uint64),
		baseUnits:     DefaultBaseUnits,
		transferUnits: DefaultTransferUnits,
		target:        target,
	}
}

func (f *Forwarder) Address() common.Address   { return f.addr }
func (f *Forwarder) Owner() common.Address     { return f.owner }
func (f *Forwarder) FeeHolder() common.Address { return f.feeHolder }

// TransferOwnership hands administrative control to a new owner.
func (f *Forwarder) TransferOwnership(caller, newOwner common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.owner {
		return ErrNotOwner
	}
	if newOwner == (common.Address{}) {
		return ErrZeroAddress
	}
	f.owner = newOwner
	return nil
}

// SetRelayer enrolls or removes a relayer from the allow list.
func (f *Forwarder) SetRelayer(caller, relayer common.Address, allowed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.owner {
		return ErrNotOwner
	}
	if relayer == (common.Address{}) {
		return ErrZeroAddress
	}
	if allowed {
		f.relayers[relayer] = true
	} else {
		delete(f.relayers, relayer)
	}
	return nil
}

// IsRelayer reports whether addr may submit envelopes.
func (f *Forwarder) IsRelayer(addr common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relayers[addr]
}

// SetFeeHolder changes the account that collects relaying fees.
func (f *Forwarder) SetFeeHolder(caller, holder common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.owner {
		return ErrNotOwner
	}
	if holder == (common.Address{}) {
		return ErrZeroAddress
	}
	f.feeHolder = holder
	return nil
}

// SetOverhead adjusts the execution-unit accounting used when pricing
// relayed calls.
func (f *Forwarder) SetOverhead(caller common.Address, baseUnits, transferUnits uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.owner {
		return ErrNotOwner
	}
	f.baseUnits = baseUnits
	f.transferUnits = transferUnits
	return nil
}

// Nonces returns the next expected nonce for user.
func (f *Forwarder) Nonces(user common.Address) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[nonceKey(user)]
}

func nonceKey(user common.Address) common.Hash {
	h := blake3.New()
	h.Write([]byte(noncePrefix))
	h.Write(user.Bytes())
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// hashEnvelope computes the signed digest of a meta-transaction under
// the given domain name, bound to this forwarder and the chain.
func (f *Forwarder) hashEnvelope(st contract.Backend, domainName string, meta *MetaTx) common.Hash {
	domain := eip712.Domain{
		Name:              domainName,
		Version:           "1",
		ChainID:           st.ChainID(),
		VerifyingContract: f.addr,
	}
	structHash := eip712.HashStruct(
		eip712.TypeHash(forwarderType),
		eip712.AddressWord(meta.From),
		eip712.AddressWord(meta.FeeToken),
		eip712.UintWord(meta.MaxTokenAmount),
		eip712.Uint64Word(meta.Deadline),
		eip712.Uint64Word(meta.Nonce),
		eip712.BytesWord(meta.Data),
		meta.HashedPayload,
	)
	return eip712.Digest(domain, structHash)
}

// Execute verifies an envelope and dispatches it. Authorization
// failures are returned as hard errors without consuming the nonce or
// emitting an event. Once the envelope is authorized, payload and
// dispatch failures are contained: the nonce is consumed, a failed
// MetaStatus event is emitted with the reason, no fee is taken, and
// Execute returns nil. The fee is priced, checked against the signed
// maximum, and escrowed before the inner call runs, so the dispatched
// action cannot spend it out from under the settlement: the escrow is
// forwarded to the fee holder on success and returned to the signer on
// a contained failure.
func (f *Forwarder) Execute(st contract.Backend, caller common.Address, meta *MetaTx, domainName string, unitPrice *big.Int, feeOffset uint64, sig eip712.Signature) error {
	f.mu.Lock()
	if !f.relayers[caller] {
		f.mu.Unlock()
		return ErrUnauthorizedRelayer
	}
	if f.locked {
		f.mu.Unlock()
		return ErrReentrancy
	}
	f.locked = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.locked = false
		f.mu.Unlock()
	}()

	if st.BlockTime() > meta.Deadline {
		return ErrExpired
	}

	signer, err := eip712.Recover(f.hashEnvelope(st, domainName, meta), sig)
	if err != nil || signer != meta.From {
		return ErrInvalidSignature
	}

	key := nonceKey(meta.From)
	if meta.Nonce != f.nonces[key] {
		return ErrInvalidNonce
	}

	fee := f.priceFee(unitPrice, feeOffset)
	feeToken, err := st.Tokens().Token(meta.FeeToken)
	if err != nil {
		return err
	}
	if fee.Cmp(meta.MaxTokenAmount) > 0 {
		return ErrFeeExceedsAuthorization
	}
	if fee.Sign() > 0 {
		if err := feeToken.Transfer(meta.From, f.addr, fee); err != nil {
			return ErrInsufficientFeeBalance
		}
	}

	f.nonces[key] = meta.Nonce + 1

	payload, err := f.target.HashPayload(meta.Data)
	if err != nil {
		f.refundFee(feeToken, meta.From, fee)
		f.emitStatus(st, meta.From, false, err.Error())
		return nil
	}
	if payload != meta.HashedPayload {
		f.refundFee(feeToken, meta.From, fee)
		f.emitStatus(st, meta.From, false, ErrPayloadMismatch.Error())
		return nil
	}

	if err := f.target.Execute(st, meta.From, meta.Data); err != nil {
		f.refundFee(feeToken, meta.From, fee)
		f.emitStatus(st, meta.From, false, err.Error())
		return nil
	}

	if fee.Sign() > 0 {
		if err := feeToken.Transfer(f.addr, f.feeHolder, fee); err != nil {
			return err
		}
	}
	f.emitStatus(st, meta.From, true, "")
	return nil
}

// refundFee returns an escrowed fee to the signer after a contained
// failure. The escrow holds exactly fee, so the transfer cannot fail.
func (f *Forwarder) refundFee(tok contract.ERC20, to common.Address, fee *big.Int) {
	if fee.Sign() > 0 {
		tok.Transfer(f.addr, to, fee)
	}
}

// priceFee converts execution units to fee-token amounts. A nonzero
// unit price always charges at least one token unit.
func (f *Forwarder) priceFee(unitPrice *big.Int, feeOffset uint64) *big.Int {
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return new(big.Int)
	}
	units := new(big.Int).SetUint64(f.baseUnits)
	units.Add(units, new(big.Int).SetUint64(f.transferUnits))
	units.Add(units, new(big.Int).SetUint64(feeOffset))
	fee := new(big.Int).Mul(unitPrice, units)
	if fee.Sign() == 0 {
		fee.SetUint64(1)
	}
	return fee
}

func (f *Forwarder) emitStatus(st contract.Backend, from common.Address, success bool, reason string) {
	var okWord common.Hash
	if success {
		okWord[common.HashLength-1] = 1
	}
	data := append(okWord.Bytes(), []byte(reason)...)
	st.AddLog(&ethtypes.Log{
		Address: f.addr,
		Topics:  []common.Hash{MetaStatusSig, eip712.AddressWord(from)},
		Data:    data,
	})
}
