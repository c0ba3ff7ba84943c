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

package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Database key schema. Every record family lives under its own prefix so the
// full family can be recovered with one prefix iteration at load time.
var (
	agentPrefix      = []byte("tn-a-") // agentPrefix + uint64 big endian -> agent record
	feedbackPrefix   = []byte("tn-f-") // feedbackPrefix + agent id -> feedback list
	validationPrefix = []byte("tn-v-") // validationPrefix + request id hash -> request record
	incidentPrefix   = []byte("tn-i-") // incidentPrefix + uint64 big endian -> incident record
	sequencePrefix   = []byte("tn-s-") // sequencePrefix + requester address -> sequence counter

	nextAgentIDKey    = []byte("tn-next-agent")
	nextIncidentIDKey = []byte("tn-next-incident")
	approvalsKey      = []byte("tn-approvals")
)

func encodeUint64(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}

func decodeUint64(data []byte) uint64 {
	return binary.BigEndian.Uint64(data)
}

func agentKey(id uint64) []byte {
	return append(append([]byte(nil), agentPrefix...), encodeUint64(id)...)
}

func feedbackKey(agentID uint64) []byte {
	return append(append([]byte(nil), feedbackPrefix...), encodeUint64(agentID)...)
}

func validationKey(id common.Hash) []byte {
	return append(append([]byte(nil), validationPrefix...), id.Bytes()...)
}

func incidentKey(id uint64) []byte {
	return append(append([]byte(nil), incidentPrefix...), encodeUint64(id)...)
}

func sequenceKey(requester common.Address) []byte {
	return append(append([]byte(nil), sequencePrefix...), requester.Bytes()...)
}
