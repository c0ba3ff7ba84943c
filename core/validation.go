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
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/trustnet/go-trustnet/core/state"
	"github.com/trustnet/go-trustnet/core/types"
	"github.com/trustnet/go-trustnet/params"
)

// ValidationRegistry tracks capability-validation requests between a
// requester, a named validator and a target agent. Request identifiers are
// derived from the request tuple and a per-requester sequence number, so a
// requester can file the same work item any number of times without
// colliding with itself or anyone else.
type ValidationRegistry struct {
	state    *state.StateDB
	identity IdentityReader
	feed     event.Feed
	domain   common.Hash
	now      func() uint64
}

// NewValidationRegistry creates the validation registry over the given state.
func NewValidationRegistry(st *state.StateDB, identity IdentityReader, domain common.Hash) *ValidationRegistry {
	return &ValidationRegistry{
		state:    st,
		identity: identity,
		domain:   domain,
		now:      func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SubscribeEvents delivers this registry's notifications to ch.
func (v *ValidationRegistry) SubscribeEvents(ch chan<- types.Notification) event.Subscription {
	return v.feed.Subscribe(ch)
}

func (v *ValidationRegistry) publish() {
	for _, ev := range v.state.PullEvents() {
		v.feed.Send(types.Notification{Event: ev})
	}
}

// Request files a new pending validation request and returns its derived
// identifier. A zero contentHash is replaced by the default hash over the
// request tuple and URI; the request itself stays unique either way through
// the requester's sequence number.
func (v *ValidationRegistry) Request(requester, validator common.Address, agentID uint64, contentHash common.Hash, uri string) (common.Hash, error) {
	if requester == (common.Address{}) || validator == (common.Address{}) {
		return common.Hash{}, ErrZeroAddress
	}
	if err := checkURI(uri); err != nil {
		return common.Hash{}, err
	}
	if !v.identity.Exists(agentID) {
		return common.Hash{}, ErrAgentNotFound
	}
	if contentHash == (common.Hash{}) {
		contentHash = types.DefaultContentHash(requester, validator, agentID, uri)
	}

	var err error
	snap := v.state.Snapshot()
	defer func() {
		if err != nil {
			v.state.RevertToSnapshot(snap)
		}
	}()

	seq := v.state.IncSequence(requester)
	id := types.DeriveRequestID(v.domain, requester, validator, agentID, contentHash, seq)
	if v.state.HasValidation(id) {
		// Unreachable under the derivation scheme. Surfacing it instead of
		// overwriting keeps a corrupt store observable.
		log.Error("Derived request id already present", "id", id, "requester", requester, "seq", seq)
		err = ErrRequestIDCollision
		return common.Hash{}, err
	}
	v.state.CreateValidation(&types.ValidationRequest{
		ID:          id,
		Requester:   requester,
		Validator:   validator,
		AgentID:     agentID,
		ContentHash: contentHash,
		URI:         uri,
		CreatedAt:   v.now(),
		Status:      types.ValidationPending,
	})
	v.state.AddEvent(types.ValidationRequested{
		RequestID:   id,
		AgentID:     agentID,
		Requester:   requester,
		Validator:   validator,
		ContentHash: contentHash,
		URI:         uri,
	})
	v.publish()
	log.Debug("Validation requested", "id", id, "agent", agentID, "validator", validator)
	return id, nil
}

// Complete records the named validator's positive decision. A nil outcome
// defaults to the full score.
func (v *ValidationRegistry) Complete(caller common.Address, id common.Hash, outcome *uint8, resultURI string, resultHash common.Hash, tag string) error {
	return v.decide(caller, id, types.ValidationCompleted, outcome, params.DefaultCompletionOutcome, resultURI, resultHash, tag)
}

// Reject records the named validator's negative decision. A nil outcome
// defaults to zero.
func (v *ValidationRegistry) Reject(caller common.Address, id common.Hash, outcome *uint8, resultURI string, resultHash common.Hash, tag string) error {
	return v.decide(caller, id, types.ValidationRejected, outcome, params.DefaultRejectionOutcome, resultURI, resultHash, tag)
}

func (v *ValidationRegistry) decide(caller common.Address, id common.Hash, status types.ValidationStatus, outcome *uint8, fallback uint8, resultURI string, resultHash common.Hash, tag string) error {
	if err := checkURI(resultURI); err != nil {
		return err
	}
	if err := checkTag(tag); err != nil {
		return err
	}
	score := fallback
	if outcome != nil {
		if *outcome > params.MaxOutcome {
			return ErrInvalidOutcome
		}
		score = *outcome
	}
	req := v.state.GetValidation(id)
	if req == nil {
		return ErrRequestNotFound
	}
	if caller != req.Validator {
		return ErrNotValidator
	}
	if req.Status.Terminal() {
		return ErrRequestNotPending
	}
	v.state.DecideValidation(id, status, score, resultURI, resultHash, tag, v.now())
	v.state.AddEvent(types.ValidationDecided{
		RequestID: id,
		AgentID:   req.AgentID,
		Validator: caller,
		Status:    status,
		Outcome:   score,
		Tag:       tag,
	})
	v.publish()
	log.Debug("Validation decided", "id", id, "status", status, "outcome", score)
	return nil
}

// Cancel withdraws a still-pending request. Only the requester may cancel;
// a cancelled request keeps no decision fields.
func (v *ValidationRegistry) Cancel(caller common.Address, id common.Hash) error {
	req := v.state.GetValidation(id)
	if req == nil {
		return ErrRequestNotFound
	}
	if caller != req.Requester {
		return ErrNotRequester
	}
	if req.Status.Terminal() {
		return ErrRequestNotPending
	}
	v.state.DecideValidation(id, types.ValidationCancelled, 0, "", common.Hash{}, "", v.now())
	v.state.AddEvent(types.ValidationCancelledEvent{
		RequestID: id,
		AgentID:   req.AgentID,
		Requester: caller,
	})
	v.publish()
	return nil
}

// Exists reports whether a request with the given id was ever filed.
func (v *ValidationRegistry) Exists(id common.Hash) bool {
	return v.state.HasValidation(id)
}

// Get returns a copy of the request record.
func (v *ValidationRegistry) Get(id common.Hash) (*types.ValidationRequest, error) {
	req := v.state.GetValidation(id)
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req.Copy(), nil
}

// StatusOf returns the request's current status.
func (v *ValidationRegistry) StatusOf(id common.Hash) (types.ValidationStatus, error) {
	req := v.state.GetValidation(id)
	if req == nil {
		return 0, ErrRequestNotFound
	}
	return req.Status, nil
}

// ByAgent returns the ids of requests targeting the agent, in creation order.
func (v *ValidationRegistry) ByAgent(agentID uint64) ([]common.Hash, error) {
	if !v.identity.Exists(agentID) {
		return nil, ErrAgentNotFound
	}
	return append([]common.Hash(nil), v.state.AgentRequests(agentID)...), nil
}

// ByValidator returns the ids of requests naming the validator.
func (v *ValidationRegistry) ByValidator(validator common.Address) []common.Hash {
	return append([]common.Hash(nil), v.state.ValidatorRequests(validator)...)
}

// ByRequester returns the ids of requests created by the requester.
func (v *ValidationRegistry) ByRequester(requester common.Address) []common.Hash {
	return append([]common.Hash(nil), v.state.RequesterRequests(requester)...)
}

// Summary aggregates the agent's requests, optionally filtered by a set of
// validators and/or a decision tag. The tag filter only ever matches decided
// requests since pending ones carry no tag.
func (v *ValidationRegistry) Summary(agentID uint64, validators []common.Address, tag string) (types.ValidationSummary, error) {
	if !v.identity.Exists(agentID) {
		return types.ValidationSummary{}, ErrAgentNotFound
	}
	var validatorSet mapset.Set
	if len(validators) > 0 {
		validatorSet = mapset.NewSet()
		for _, validator := range validators {
			validatorSet.Add(validator)
		}
	}

	var (
		summary    types.ValidationSummary
		outcomeSum uint64
		decided    uint64
	)
	for _, id := range v.state.AgentRequests(agentID) {
		req := v.state.GetValidation(id)
		if validatorSet != nil && !validatorSet.Contains(req.Validator) {
			continue
		}
		if tag != "" && req.Tag != tag {
			continue
		}
		summary.Total++
		switch req.Status {
		case types.ValidationPending:
			summary.Pending++
		case types.ValidationCompleted:
			summary.Completed++
			outcomeSum += uint64(req.Outcome)
			decided++
		case types.ValidationRejected:
			summary.Rejected++
			outcomeSum += uint64(req.Outcome)
			decided++
		case types.ValidationCancelled:
			summary.Cancelled++
		}
	}
	if decided > 0 {
		summary.AverageOutcome = uint8(outcomeSum / decided)
	}
	return summary, nil
}
