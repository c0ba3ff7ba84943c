// Copyright 2024 The go-trustnet Authors
// This file is part of the go-trustnet library.
//
// The go-trustnet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-trustnet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-trustnet library. If not, see <http://www.gnu.org/licenses/>.

package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
)

// DelegationVerifier checks a proof of control over a claimed signer address.
// The digest is the canonical delegation message (types.WalletDelegationDigest);
// implementations must reject malformed and non-canonical proofs rather than
// guessing.
type DelegationVerifier interface {
	Verify(digest common.Hash, proof []byte, signer common.Address) error
}

// ECDSAVerifier validates secp256k1 recovery proofs: the proof is a 65-byte
// [R || S || V] signature over the digest, and it is accepted only when the
// recovered address equals the claimed signer. Recovered signers are cached,
// keyed by digest and proof.
type ECDSAVerifier struct {
	cache *lru.Cache
}

// signerCacheSize bounds the recovered-signer cache.
const signerCacheSize = 4096

// NewECDSAVerifier creates a verifier with a fresh signer cache.
func NewECDSAVerifier() *ECDSAVerifier {
	cache, _ := lru.New(signerCacheSize)
	return &ECDSAVerifier{cache: cache}
}

// Verify implements DelegationVerifier.
func (v *ECDSAVerifier) Verify(digest common.Hash, proof []byte, signer common.Address) error {
	if signer == (common.Address{}) {
		return ErrZeroAddress
	}
	if len(proof) != crypto.SignatureLength {
		return ErrInvalidProof
	}
	recovered, err := v.recover(digest, proof)
	if err != nil {
		return ErrInvalidProof
	}
	if recovered != signer {
		return ErrInvalidProof
	}
	return nil
}

func (v *ECDSAVerifier) recover(digest common.Hash, proof []byte) (common.Address, error) {
	key := string(append(digest.Bytes(), proof...))
	if cached, ok := v.cache.Get(key); ok {
		return cached.(common.Address), nil
	}

	sig := append([]byte(nil), proof...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		// Accept the legacy 27/28 recovery id encoding.
		sig[crypto.RecoveryIDOffset] -= 27
	}
	r := new(big.Int).SetBytes(sig[:32])
	ss := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, ss, true) {
		return common.Address{}, ErrInvalidProof
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	recovered := crypto.PubkeyToAddress(*pub)
	v.cache.Add(key, recovered)
	return recovered, nil
}
