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

import "errors"

// Input validation errors.
var (
	ErrZeroAddress          = errors.New("zero address")
	ErrOversizedURI         = errors.New("uri exceeds length ceiling")
	ErrOversizedText        = errors.New("text exceeds length ceiling")
	ErrOversizedTag         = errors.New("tag exceeds length ceiling")
	ErrOversizedMetadataKey = errors.New("metadata key exceeds length ceiling")
	ErrOversizedMetadata    = errors.New("metadata value exceeds length ceiling")
	ErrEmptyMetadataKey     = errors.New("metadata key is empty")
	ErrLengthMismatch       = errors.New("mismatched parallel array lengths")
	ErrInvalidSentiment     = errors.New("invalid sentiment")
	ErrInvalidOutcome       = errors.New("outcome exceeds maximum")
	ErrInvalidResolution    = errors.New("invalid resolution code")
)

// Referential integrity errors.
var (
	ErrAgentNotFound    = errors.New("agent does not exist")
	ErrFeedbackNotFound = errors.New("feedback index does not exist")
	ErrRequestNotFound  = errors.New("validation request does not exist")
	ErrIncidentNotFound = errors.New("incident does not exist")
)

// Authorization errors.
var (
	ErrNotOwner      = errors.New("caller is not the agent owner")
	ErrNotAuthorized = errors.New("caller is neither owner nor approved operator")
	ErrNotAuthority  = errors.New("caller is neither owner nor delegated wallet")
	ErrNotAuthor     = errors.New("caller is not the feedback author")
	ErrNotValidator  = errors.New("caller is not the request validator")
	ErrNotRequester  = errors.New("caller is not the request creator")
	ErrNotReporter   = errors.New("caller is not the incident reporter")
	ErrSelfFeedback  = errors.New("feedback about an agent the caller controls")
)

// State machine errors.
var (
	ErrAgentActive          = errors.New("agent is already active")
	ErrAgentInactive        = errors.New("agent is already inactive")
	ErrFeedbackRevoked      = errors.New("feedback is already revoked")
	ErrThreadFull           = errors.New("response thread is full")
	ErrRequestNotPending    = errors.New("validation request is not pending")
	ErrIncidentNotOpen      = errors.New("incident is not open")
	ErrIncidentNotResponded = errors.New("incident has not been responded to")
)

// Integrity invariant violations. ErrRequestIDCollision is unreachable under
// the derivation scheme; observing it means the state itself is corrupt.
var (
	ErrRequestIDCollision = errors.New("derived request identifier collision")
)

// Delegation proof errors.
var (
	ErrProofExpired = errors.New("delegation proof expired")
	ErrInvalidProof = errors.New("invalid delegation proof")
)
