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
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Agent is an identity record minted by the identity registry. The numeric ID
// is assigned once at registration and never reused; the record itself is
// never deleted, deactivation is a reversible flag.
type Agent struct {
	ID    uint64
	Owner common.Address

	// URI points at the off-chain metadata document; MetadataHash is its
	// optional integrity hash. The document itself is never parsed here.
	URI          string
	MetadataHash common.Hash

	// Metadata holds arbitrary per-agent key/value entries.
	Metadata map[string][]byte

	// Wallet is the delegated operational address, zero when unset. It is
	// cleared whenever ownership transfers.
	Wallet common.Address

	Active bool

	// DelegationNonce is folded into every wallet delegation proof and
	// bumped on use, so a captured proof cannot be replayed.
	DelegationNonce uint64

	CreatedAt uint64
}

// MetadataEntry is one key/value pair supplied at registration or through a
// batch metadata update.
type MetadataEntry struct {
	Key   string
	Value []byte
}

// MetadataEntries returns the agent's metadata as key-sorted entries.
func (a *Agent) MetadataEntries() []MetadataEntry {
	if len(a.Metadata) == 0 {
		return nil
	}
	keys := make([]string, 0, len(a.Metadata))
	for key := range a.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	entries := make([]MetadataEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, MetadataEntry{Key: key, Value: a.Metadata[key]})
	}
	return entries
}

// Copy returns a deep copy of the agent record.
func (a *Agent) Copy() *Agent {
	cpy := *a
	if a.Metadata != nil {
		cpy.Metadata = make(map[string][]byte, len(a.Metadata))
		for k, v := range a.Metadata {
			cpy.Metadata[k] = append([]byte(nil), v...)
		}
	}
	return &cpy
}
