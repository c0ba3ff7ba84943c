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
	"github.com/ethereum/go-ethereum/common"
)

// ValidationStatus tracks the closed request state machine
// Pending -> {Completed, Rejected, Cancelled}; exactly one transition away
// from Pending is ever permitted.
type ValidationStatus uint8

const (
	ValidationPending ValidationStatus = iota
	ValidationCompleted
	ValidationRejected
	ValidationCancelled
)

// Terminal reports whether no further transition is permitted.
func (s ValidationStatus) Terminal() bool {
	return s != ValidationPending
}

func (s ValidationStatus) String() string {
	switch s {
	case ValidationPending:
		return "pending"
	case ValidationCompleted:
		return "completed"
	case ValidationRejected:
		return "rejected"
	case ValidationCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ValidationRequest is one capability-validation record. Its identifier is
// derived, never caller-chosen: see DeriveRequestID.
//
// A pending request has no expiry. A validator that never answers leaves the
// request pending until the requester cancels; there is deliberately no
// administrative override.
type ValidationRequest struct {
	ID common.Hash

	Requester common.Address
	Validator common.Address
	AgentID   uint64

	ContentHash common.Hash
	URI         string
	CreatedAt   uint64

	Status ValidationStatus

	// Decision fields, zero until the request leaves Pending.
	ResultURI  string
	ResultHash common.Hash
	Tag        string
	Outcome    uint8
	DecidedAt  uint64
}

// Copy returns a copy of the request record.
func (r *ValidationRequest) Copy() *ValidationRequest {
	cpy := *r
	return &cpy
}

// ValidationSummary aggregates requests for one agent under an optional
// validator-set/tag filter. AverageOutcome is the integer mean outcome over
// decided (completed or rejected) requests and zero when none were decided.
type ValidationSummary struct {
	Total     uint64 `json:"total"`
	Pending   uint64 `json:"pending"`
	Completed uint64 `json:"completed"`
	Rejected  uint64 `json:"rejected"`
	Cancelled uint64 `json:"cancelled"`

	AverageOutcome uint8 `json:"averageOutcome"`
}
