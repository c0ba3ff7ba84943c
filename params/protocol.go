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

package params

// Field-length ceilings shared by every registry. A field exceeding its
// ceiling aborts the whole operation.
const (
	// MaxURILength bounds every stored URI (agent URI, evidence, results).
	MaxURILength = 2048

	// MaxTextLength bounds free-text fields (feedback content, responses).
	MaxTextLength = 2048

	// MaxTagLength bounds categorization tags on feedback, validation
	// requests and incident categories.
	MaxTagLength = 128

	// MaxMetadataKeyLength bounds agent metadata keys.
	MaxMetadataKeyLength = 128

	// MaxMetadataValueLength bounds agent metadata values.
	MaxMetadataValueLength = 2048

	// MaxEndpointLength bounds service-endpoint strings in off-chain agent
	// metadata documents. The core stores such documents by URI only; the
	// ceiling is published here for producers of those documents.
	MaxEndpointLength = 512

	// MaxFeedbackResponses bounds the response thread of one feedback item.
	MaxFeedbackResponses = 30
)

// Validation outcome conventions. An omitted outcome on complete/reject is
// replaced by the named default, which makes a stored boundary value
// indistinguishable from an explicitly supplied one. Integrators that need
// the distinction must supply an explicit outcome.
const (
	// MaxOutcome is the inclusive upper bound of a validation outcome.
	MaxOutcome uint8 = 100

	// DefaultCompletionOutcome is recorded when a validator completes a
	// request without an explicit outcome.
	DefaultCompletionOutcome uint8 = MaxOutcome

	// DefaultRejectionOutcome is recorded when a validator rejects a
	// request without an explicit outcome.
	DefaultRejectionOutcome uint8 = 0
)

// FirstAgentID is the identifier minted for the first registered agent.
// Identifiers are sequential and never reused.
const FirstAgentID uint64 = 1

// FirstIncidentID is the identifier assigned to the first reported incident.
const FirstIncidentID uint64 = 1
