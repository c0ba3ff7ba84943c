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

// IncidentStatus advances strictly Open -> Responded -> Resolved, never
// skipping and never reversing.
type IncidentStatus uint8

const (
	IncidentOpen IncidentStatus = iota
	IncidentResponded
	IncidentResolved
)

func (s IncidentStatus) String() string {
	switch s {
	case IncidentOpen:
		return "open"
	case IncidentResponded:
		return "responded"
	case IncidentResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Resolution is the fixed vocabulary a reporter closes an incident with.
type Resolution uint8

const (
	ResolutionNone Resolution = iota
	ResolutionAcknowledged
	ResolutionDisputed
	ResolutionFixed
	ResolutionNotABug
	ResolutionDuplicate
)

// Valid reports whether r is part of the resolution vocabulary.
func (r Resolution) Valid() bool {
	return r <= ResolutionDuplicate
}

func (r Resolution) String() string {
	switch r {
	case ResolutionNone:
		return "none"
	case ResolutionAcknowledged:
		return "acknowledged"
	case ResolutionDisputed:
		return "disputed"
	case ResolutionFixed:
		return "fixed"
	case ResolutionNotABug:
		return "not-a-bug"
	case ResolutionDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Incident is one behavior-dispute record. An open or responded incident has
// no timeout; only the reporter can move it to Resolved, and only after the
// agent authority has responded.
type Incident struct {
	ID      uint64
	AgentID uint64

	Reporter   common.Address
	ReportURI  string
	ReportHash common.Hash
	Category   string
	CreatedAt  uint64

	Status IncidentStatus

	ResponseURI  string
	ResponseHash common.Hash
	Responder    common.Address
	RespondedAt  uint64

	Resolution Resolution
	ResolvedAt uint64
}

// Copy returns a copy of the incident record.
func (i *Incident) Copy() *Incident {
	cpy := *i
	return &cpy
}

// IncidentSummary tallies one agent's incidents by status, with the resolved
// bucket further broken down by resolution code.
type IncidentSummary struct {
	Total     uint64 `json:"total"`
	Open      uint64 `json:"open"`
	Responded uint64 `json:"responded"`
	Resolved  uint64 `json:"resolved"`

	Acknowledged uint64 `json:"acknowledged"`
	Disputed     uint64 `json:"disputed"`
	Fixed        uint64 `json:"fixed"`
	NotABug      uint64 `json:"notABug"`
	Duplicate    uint64 `json:"duplicate"`
}
