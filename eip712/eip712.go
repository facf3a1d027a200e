// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package eip712 implements typed structured-data hashing and
// signature recovery (EIP-712). Components build their struct hashes
// from 32-byte words, bind them to a domain, and recover the signer
// from a compact {v, r, s} signature.
package eip712

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidV         = errors.New("invalid signature recovery id")
)

// domainType is the canonical EIP-712 domain type string.
const domainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

// Domain identifies the verifying contract a signature is scoped to.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Separator returns the domain separator hash.
func (d Domain) Separator() common.Hash {
	return HashStruct(
		TypeHash(domainType),
		StringWord(d.Name),
		StringWord(d.Version),
		UintWord(d.ChainID),
		AddressWord(d.VerifyingContract),
	)
}

// TypeHash hashes an EIP-712 type signature string.
func TypeHash(sig string) common.Hash {
	return common.Hash(crypto.Keccak256Hash([]byte(sig)))
}

// HashStruct hashes a typed struct: keccak(typeHash || word...).
func HashStruct(typeHash common.Hash, words ...common.Hash) common.Hash {
	buf := make([]byte, 0, (len(words)+1)*common.HashLength)
	buf = append(buf, typeHash.Bytes()...)
	for _, w := range words {
		buf = append(buf, w.Bytes()...)
	}
	return common.Hash(crypto.Keccak256Hash(buf))
}

// Digest computes the signable digest:
// keccak(0x19 0x01 || domainSeparator || structHash).
func Digest(domain Domain, structHash common.Hash) common.Hash {
	sep := domain.Separator()
	return common.Hash(crypto.Keccak256Hash([]byte{0x19, 0x01}, sep.Bytes(), structHash.Bytes()))
}

// AddressWord left-pads an address to a 32-byte word.
func AddressWord(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// UintWord encodes an unsigned integer as a 32-byte word. Nil is
// treated as zero.
func UintWord(v *big.Int) common.Hash {
	if v == nil {
		return common.Hash{}
	}
	return common.BigToHash(v)
}

// Uint64Word encodes a uint64 as a 32-byte word.
func Uint64Word(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

// BytesWord encodes dynamic bytes as their keccak hash, per EIP-712.
func BytesWord(data []byte) common.Hash {
	return common.Hash(crypto.Keccak256Hash(data))
}

// StringWord encodes a string as the keccak hash of its UTF-8 bytes.
func StringWord(s string) common.Hash {
	return common.Hash(crypto.Keccak256Hash([]byte(s)))
}

// Signature is a compact secp256k1 signature with an Ethereum-style
// recovery id (27 or 28; 0 and 1 are also accepted).
type Signature struct {
	V uint8
	R common.Hash
	S common.Hash
}

// compact returns the 65-byte [R || S || V] form with V in {0, 1}.
func (s Signature) compact() ([]byte, error) {
	v := s.V
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, ErrInvalidV
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig[:32], s.R.Bytes())
	copy(sig[32:64], s.S.Bytes())
	sig[64] = v
	return sig, nil
}

// Recover returns the address that signed the digest.
func Recover(digest common.Hash, sig Signature) (common.Address, error) {
	compact, err := sig.compact()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(digest.Bytes(), compact)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return common.Address(crypto.PubkeyToAddress(*pub)), nil
}

// Sign produces a Signature over the digest with V normalized to
// 27/28.
func Sign(digest common.Hash, key *ecdsa.PrivateKey) (Signature, error) {
	raw, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		V: raw[64] + 27,
		R: common.BytesToHash(raw[:32]),
		S: common.BytesToHash(raw[32:64]),
	}, nil
}
