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

package types

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DomainIdentifier derives the execution-environment identifier folded into
// every derived request ID and delegation digest. Two deployments with
// different network labels can never produce colliding or replayable
// identifiers.
func DomainIdentifier(network string) common.Hash {
	return crypto.Keccak256Hash([]byte("trustnet/registry/v1/"), []byte(network))
}

// DeriveRequestID computes a validation request identifier as a pure function
// of the request tuple, the requester's sequence number and the domain
// identifier. The sequence number only increases per requester, so two
// requests from the same requester, or requests from different requesters,
// can never collide.
func DeriveRequestID(domain common.Hash, requester, validator common.Address, agentID uint64, contentHash common.Hash, seq uint64) common.Hash {
	var buf [8]byte
	h := crypto.NewKeccakState()
	h.Write(domain[:])
	h.Write(requester[:])
	h.Write(validator[:])
	binary.BigEndian.PutUint64(buf[:], agentID)
	h.Write(buf[:])
	h.Write(contentHash[:])
	binary.BigEndian.PutUint64(buf[:], seq)
	h.Write(buf[:])

	var id common.Hash
	h.Read(id[:])
	return id
}

// DefaultContentHash is recorded when a requester supplies no content hash of
// its own. It binds the request to its parties and URI; the request ID stays
// collision-free regardless through the sequence number.
func DefaultContentHash(requester, validator common.Address, agentID uint64, uri string) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], agentID)
	return crypto.Keccak256Hash(requester[:], validator[:], buf[:], []byte(uri))
}

// WalletDelegationDigest is the canonical message an operational wallet signs
// to prove control before being delegated. The nonce is the agent's current
// delegation nonce and is bumped when the proof is consumed; the expiry bounds
// how long a signed proof stays usable.
func WalletDelegationDigest(domain common.Hash, agentID uint64, wallet common.Address, nonce, expiry uint64) common.Hash {
	var buf [8]byte
	h := crypto.NewKeccakState()
	h.Write(domain[:])
	h.Write([]byte("wallet-delegation"))
	binary.BigEndian.PutUint64(buf[:], agentID)
	h.Write(buf[:])
	h.Write(wallet[:])
	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], expiry)
	h.Write(buf[:])

	var digest common.Hash
	h.Read(digest[:])
	return digest
}
