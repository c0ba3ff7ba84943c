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

// Package core implements the four trust registries: identity, reputation,
// validation and incident. The identity registry is the single source of
// truth for agent control; the other three consult it through the read-only
// IdentityReader capability and never the other way around, so there are no
// reentrant cross-registry cycles.
package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/trustnet/go-trustnet/core/state"
	"github.com/trustnet/go-trustnet/core/types"
)

// IdentityReader is the narrow read-only capability the dependent registries
// hold on the identity registry.
type IdentityReader interface {
	// Exists reports whether the id names a minted agent.
	Exists(id uint64) bool

	// OwnerOf returns the current owning address.
	OwnerOf(id uint64) (common.Address, error)

	// WalletOf returns the delegated wallet, zero when unset.
	WalletOf(id uint64) (common.Address, error)

	// IsAuthority reports whether addr is the agent's current owner or
	// delegated wallet.
	IsAuthority(id uint64, addr common.Address) (bool, error)
}

// IdentityRegistry mints and manages agent identities. There is no
// administrative override: every mutation is authorized by ownership,
// operator approval or a signed proof of control.
type IdentityRegistry struct {
	state    *state.StateDB
	verifier DelegationVerifier
	domain   common.Hash
	feed     event.Feed
	now      func() uint64
}

// NewIdentityRegistry creates the identity registry over the given state.
// The domain is the execution-environment identifier bound into delegation
// proofs.
func NewIdentityRegistry(st *state.StateDB, verifier DelegationVerifier, domain common.Hash) *IdentityRegistry {
	return &IdentityRegistry{
		state:    st,
		verifier: verifier,
		domain:   domain,
		now:      func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SubscribeEvents delivers this registry's notifications to ch.
func (r *IdentityRegistry) SubscribeEvents(ch chan<- types.Notification) event.Subscription {
	return r.feed.Subscribe(ch)
}

func (r *IdentityRegistry) publish() {
	for _, ev := range r.state.PullEvents() {
		r.feed.Send(types.Notification{Event: ev})
	}
}

// Register mints a new agent identity owned by the caller.
func (r *IdentityRegistry) Register(caller common.Address) (uint64, error) {
	return r.register(caller, "", common.Hash{}, nil)
}

// RegisterWithURI mints a new agent identity with a metadata document URI and
// its optional integrity hash.
func (r *IdentityRegistry) RegisterWithURI(caller common.Address, uri string, hash common.Hash) (uint64, error) {
	return r.register(caller, uri, hash, nil)
}

// RegisterWithMetadata mints a new agent identity with a URI and structured
// metadata entries. All registration shapes converge on the same minting
// step.
func (r *IdentityRegistry) RegisterWithMetadata(caller common.Address, uri string, hash common.Hash, entries []types.MetadataEntry) (uint64, error) {
	return r.register(caller, uri, hash, entries)
}

func (r *IdentityRegistry) register(caller common.Address, uri string, hash common.Hash, entries []types.MetadataEntry) (id uint64, err error) {
	if caller == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if err := checkURI(uri); err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if err := checkMetadataKey(entry.Key); err != nil {
			return 0, err
		}
		if err := checkMetadataValue(entry.Value); err != nil {
			return 0, err
		}
	}

	snap := r.state.Snapshot()
	defer func() {
		if err != nil {
			r.state.RevertToSnapshot(snap)
		}
	}()

	agent := r.state.CreateAgent(caller, uri, r.now())
	if hash != (common.Hash{}) {
		r.state.SetAgentURI(agent.ID, uri, hash)
	}
	for _, entry := range entries {
		r.state.SetAgentMetadata(agent.ID, entry.Key, entry.Value)
	}
	r.state.AddEvent(types.AgentRegistered{AgentID: agent.ID, Owner: caller, URI: uri})

	log.Debug("Agent registered", "id", agent.ID, "owner", caller)
	r.publish()
	return agent.ID, nil
}

// UpdateURI replaces the agent's metadata document URI and integrity hash.
// Owner or approved operator only.
func (r *IdentityRegistry) UpdateURI(caller common.Address, id uint64, uri string, hash common.Hash) error {
	if err := checkURI(uri); err != nil {
		return err
	}
	if err := r.requireOwnerOrOperator(caller, id); err != nil {
		return err
	}
	r.state.SetAgentURI(id, uri, hash)
	r.state.AddEvent(types.AgentURIUpdated{AgentID: id, URI: uri, MetadataHash: hash})
	r.publish()
	return nil
}

// SetMetadata sets one metadata key on the agent; an empty value deletes the
// key. Owner or approved operator only.
func (r *IdentityRegistry) SetMetadata(caller common.Address, id uint64, key string, value []byte) error {
	if err := checkMetadataKey(key); err != nil {
		return err
	}
	if err := checkMetadataValue(value); err != nil {
		return err
	}
	if err := r.requireOwnerOrOperator(caller, id); err != nil {
		return err
	}
	r.state.SetAgentMetadata(id, key, value)
	r.state.AddEvent(types.AgentMetadataUpdated{AgentID: id, Key: key, Value: value})
	r.publish()
	return nil
}

// SetMetadataBatch sets several metadata keys in one atomic operation. The
// key and value slices run parallel and must have equal length.
func (r *IdentityRegistry) SetMetadataBatch(caller common.Address, id uint64, keys []string, values [][]byte) (err error) {
	if len(keys) != len(values) {
		return ErrLengthMismatch
	}
	for i := range keys {
		if err := checkMetadataKey(keys[i]); err != nil {
			return err
		}
		if err := checkMetadataValue(values[i]); err != nil {
			return err
		}
	}
	if err := r.requireOwnerOrOperator(caller, id); err != nil {
		return err
	}

	snap := r.state.Snapshot()
	defer func() {
		if err != nil {
			r.state.RevertToSnapshot(snap)
		}
	}()

	for i := range keys {
		r.state.SetAgentMetadata(id, keys[i], values[i])
		r.state.AddEvent(types.AgentMetadataUpdated{AgentID: id, Key: keys[i], Value: values[i]})
	}
	r.publish()
	return nil
}

// SetApprovalForAll lets the caller authorize (or revoke) an operator for
// every agent the caller owns.
func (r *IdentityRegistry) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	if caller == (common.Address{}) || operator == (common.Address{}) {
		return ErrZeroAddress
	}
	r.state.SetApproval(caller, operator, approved)
	r.state.AddEvent(types.OperatorApprovalChanged{Owner: caller, Operator: operator, Approved: approved})
	r.publish()
	return nil
}

// Transfer moves ownership of the agent to a new address. The caller must be
// the current owner or an approved operator of the owner. Any delegated
// wallet is cleared as an atomic side effect, with its own notification.
func (r *IdentityRegistry) Transfer(caller common.Address, id uint64, to common.Address) (err error) {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	agent := r.state.GetAgent(id)
	if agent == nil {
		return ErrAgentNotFound
	}
	if caller != agent.Owner && !r.state.Approval(agent.Owner, caller) {
		return ErrNotAuthorized
	}

	snap := r.state.Snapshot()
	defer func() {
		if err != nil {
			r.state.RevertToSnapshot(snap)
		}
	}()

	from := agent.Owner
	if wallet := agent.Wallet; wallet != (common.Address{}) {
		r.state.SetAgentWallet(id, common.Address{})
		r.state.AddEvent(types.AgentWalletCleared{AgentID: id, Wallet: wallet})
	}
	r.state.SetAgentOwner(id, to)
	r.state.AddEvent(types.AgentTransferred{AgentID: id, From: from, To: to})

	log.Debug("Agent transferred", "id", id, "from", from, "to", to)
	r.publish()
	return nil
}

// SetWallet delegates an operational wallet. The wallet proves control by
// signing the canonical delegation message bound to the domain, the agent,
// the agent's current delegation nonce and an expiry; the nonce is bumped
// when the proof is consumed, so a captured proof cannot be replayed. Owner
// only.
func (r *IdentityRegistry) SetWallet(caller common.Address, id uint64, wallet common.Address, expiry uint64, proof []byte) (err error) {
	if wallet == (common.Address{}) {
		return ErrZeroAddress
	}
	agent := r.state.GetAgent(id)
	if agent == nil {
		return ErrAgentNotFound
	}
	if caller != agent.Owner {
		return ErrNotOwner
	}
	if expiry < r.now() {
		return ErrProofExpired
	}
	digest := types.WalletDelegationDigest(r.domain, id, wallet, agent.DelegationNonce, expiry)
	if err := r.verifier.Verify(digest, proof, wallet); err != nil {
		return err
	}

	snap := r.state.Snapshot()
	defer func() {
		if err != nil {
			r.state.RevertToSnapshot(snap)
		}
	}()

	r.state.SetDelegationNonce(id, agent.DelegationNonce+1)
	r.state.SetAgentWallet(id, wallet)
	r.state.AddEvent(types.AgentWalletSet{AgentID: id, Wallet: wallet})
	r.publish()
	return nil
}

// UnsetWallet clears the delegated wallet. This path needs no proof and is
// open to the owner and to the wallet itself, so a compromised delegation is
// always revocable. Unlike Deactivate/Reactivate, clearing an already-empty
// wallet succeeds without effect or event: revocation is the safety lever
// here, and retrying it must never fail.
func (r *IdentityRegistry) UnsetWallet(caller common.Address, id uint64) error {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return ErrAgentNotFound
	}
	if caller != agent.Owner && (agent.Wallet == (common.Address{}) || caller != agent.Wallet) {
		return ErrNotAuthority
	}
	if agent.Wallet == (common.Address{}) {
		return nil
	}
	wallet := agent.Wallet
	r.state.SetAgentWallet(id, common.Address{})
	r.state.AddEvent(types.AgentWalletCleared{AgentID: id, Wallet: wallet})
	r.publish()
	return nil
}

// Deactivate flips the agent inactive. Owner only; deactivating twice fails.
func (r *IdentityRegistry) Deactivate(caller common.Address, id uint64) error {
	return r.setActive(caller, id, false)
}

// Reactivate flips the agent active again. Owner only; reactivating an
// active agent fails.
func (r *IdentityRegistry) Reactivate(caller common.Address, id uint64) error {
	return r.setActive(caller, id, true)
}

func (r *IdentityRegistry) setActive(caller common.Address, id uint64, active bool) error {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return ErrAgentNotFound
	}
	if caller != agent.Owner {
		return ErrNotOwner
	}
	if agent.Active == active {
		if active {
			return ErrAgentActive
		}
		return ErrAgentInactive
	}
	r.state.SetAgentActive(id, active)
	r.state.AddEvent(types.AgentStatusChanged{AgentID: id, Active: active})
	r.publish()
	return nil
}

func (r *IdentityRegistry) requireOwnerOrOperator(caller common.Address, id uint64) error {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return ErrAgentNotFound
	}
	if caller != agent.Owner && !r.state.Approval(agent.Owner, caller) {
		return ErrNotAuthorized
	}
	return nil
}

//
// Queries.
//

// Exists implements IdentityReader.
func (r *IdentityRegistry) Exists(id uint64) bool {
	return r.state.HasAgent(id)
}

// OwnerOf implements IdentityReader.
func (r *IdentityRegistry) OwnerOf(id uint64) (common.Address, error) {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return common.Address{}, ErrAgentNotFound
	}
	return agent.Owner, nil
}

// WalletOf implements IdentityReader.
func (r *IdentityRegistry) WalletOf(id uint64) (common.Address, error) {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return common.Address{}, ErrAgentNotFound
	}
	return agent.Wallet, nil
}

// IsAuthority implements IdentityReader.
func (r *IdentityRegistry) IsAuthority(id uint64, addr common.Address) (bool, error) {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return false, ErrAgentNotFound
	}
	if addr == (common.Address{}) {
		return false, nil
	}
	return addr == agent.Owner || addr == agent.Wallet, nil
}

// AgentByID returns a copy of the full agent record.
func (r *IdentityRegistry) AgentByID(id uint64) (*types.Agent, error) {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return nil, ErrAgentNotFound
	}
	return agent.Copy(), nil
}

// MetadataOf returns one metadata value.
func (r *IdentityRegistry) MetadataOf(id uint64, key string) ([]byte, error) {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return nil, ErrAgentNotFound
	}
	return append([]byte(nil), agent.Metadata[key]...), nil
}

// IsActive reports the agent's lifecycle flag.
func (r *IdentityRegistry) IsActive(id uint64) (bool, error) {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return false, ErrAgentNotFound
	}
	return agent.Active, nil
}

// DelegationNonce returns the nonce the next wallet proof must sign over.
func (r *IdentityRegistry) DelegationNonce(id uint64) (uint64, error) {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return 0, ErrAgentNotFound
	}
	return agent.DelegationNonce, nil
}

// IsApprovedForAll reports whether operator may act for owner.
func (r *IdentityRegistry) IsApprovedForAll(owner, operator common.Address) bool {
	return r.state.Approval(owner, operator)
}

// AgentCount returns the number of agents ever minted.
func (r *IdentityRegistry) AgentCount() uint64 {
	return r.state.AgentCount()
}
