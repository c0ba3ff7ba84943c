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

// Event is a structured notification emitted by a registry mutation. Every
// event carries the identifiers and post-state fields an off-chain observer
// needs to reconstruct the change without re-reading storage. Events are
// journaled with the state: an aborted operation emits nothing.
type Event interface {
	// Name returns the stable event name used on the wire.
	Name() string
}

// Notification is the concrete envelope the registries push through their
// event feeds. event.Feed pins one send type per feed, so the heterogeneous
// events travel wrapped.
type Notification struct {
	Event Event
}

// Identity registry events.

type AgentRegistered struct {
	AgentID uint64
	Owner   common.Address
	URI     string
}

type AgentURIUpdated struct {
	AgentID      uint64
	URI          string
	MetadataHash common.Hash
}

type AgentMetadataUpdated struct {
	AgentID uint64
	Key     string
	Value   []byte
}

type AgentWalletSet struct {
	AgentID uint64
	Wallet  common.Address
}

type AgentWalletCleared struct {
	AgentID uint64
	Wallet  common.Address // the wallet that was cleared
}

type AgentTransferred struct {
	AgentID uint64
	From    common.Address
	To      common.Address
}

type AgentStatusChanged struct {
	AgentID uint64
	Active  bool
}

type OperatorApprovalChanged struct {
	Owner    common.Address
	Operator common.Address
	Approved bool
}

// Reputation registry events.

type FeedbackSubmitted struct {
	AgentID   uint64
	Index     uint64
	Author    common.Address
	Sentiment Sentiment
	Score     *Score
	Tag1      string
	Tag2      string
}

type FeedbackRevoked struct {
	AgentID uint64
	Index   uint64
	Author  common.Address
}

type FeedbackResponded struct {
	AgentID   uint64
	Index     uint64
	Responder common.Address
	Thread    uint64 // post-append thread length
}

// Validation registry events.

type ValidationRequested struct {
	RequestID   common.Hash
	AgentID     uint64
	Requester   common.Address
	Validator   common.Address
	ContentHash common.Hash
	URI         string
}

type ValidationDecided struct {
	RequestID common.Hash
	AgentID   uint64
	Validator common.Address
	Status    ValidationStatus // Completed or Rejected
	Outcome   uint8
	Tag       string
}

type ValidationCancelledEvent struct {
	RequestID common.Hash
	AgentID   uint64
	Requester common.Address
}

// Incident registry events.

type IncidentReported struct {
	IncidentID uint64
	AgentID    uint64
	Reporter   common.Address
	Category   string
}

type IncidentRespondedEvent struct {
	IncidentID uint64
	AgentID    uint64
	Responder  common.Address
}

type IncidentResolvedEvent struct {
	IncidentID uint64
	AgentID    uint64
	Reporter   common.Address
	Resolution Resolution
}

func (AgentRegistered) Name() string         { return "AgentRegistered" }
func (AgentURIUpdated) Name() string         { return "AgentURIUpdated" }
func (AgentMetadataUpdated) Name() string    { return "AgentMetadataUpdated" }
func (AgentWalletSet) Name() string          { return "AgentWalletSet" }
func (AgentWalletCleared) Name() string      { return "AgentWalletCleared" }
func (AgentTransferred) Name() string        { return "AgentTransferred" }
func (AgentStatusChanged) Name() string      { return "AgentStatusChanged" }
func (OperatorApprovalChanged) Name() string { return "OperatorApprovalChanged" }
func (FeedbackSubmitted) Name() string       { return "FeedbackSubmitted" }
func (FeedbackRevoked) Name() string         { return "FeedbackRevoked" }
func (FeedbackResponded) Name() string       { return "FeedbackResponded" }
func (ValidationRequested) Name() string     { return "ValidationRequested" }
func (ValidationDecided) Name() string       { return "ValidationDecided" }
func (ValidationCancelledEvent) Name() string { return "ValidationCancelled" }
func (IncidentReported) Name() string        { return "IncidentReported" }
func (IncidentRespondedEvent) Name() string  { return "IncidentResponded" }
func (IncidentResolvedEvent) Name() string   { return "IncidentResolved" }
