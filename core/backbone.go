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
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"github.com/trustnet/go-trustnet/core/rawdb"
	"github.com/trustnet/go-trustnet/core/state"
	"github.com/trustnet/go-trustnet/core/types"
)

// Backbone assembles the four registries over one shared state and
// serializes access to it. The state itself takes no locks; every mutation
// runs under Exec, which commits the journaled changes to the backing
// database once the operation succeeds.
type Backbone struct {
	mu    sync.RWMutex
	state *state.StateDB

	Identity   *IdentityRegistry
	Reputation *ReputationRegistry
	Validation *ValidationRegistry
	Incident   *IncidentRegistry
}

// NewBackbone loads the registries from db. The network label scopes all
// derived identifiers and delegation proofs to this deployment; db may be
// nil for a purely in-memory instance.
func NewBackbone(db rawdb.Database, network string) *Backbone {
	st := state.New(db)
	domain := types.DomainIdentifier(network)
	identity := NewIdentityRegistry(st, NewECDSAVerifier(), domain)
	return &Backbone{
		state:      st,
		Identity:   identity,
		Reputation: NewReputationRegistry(st, identity),
		Validation: NewValidationRegistry(st, identity, domain),
		Incident:   NewIncidentRegistry(st, identity),
	}
}

// Exec runs one mutating operation under the write lock and commits its
// state changes when it succeeds. A failed operation has already reverted
// itself and leaves nothing to persist.
func (b *Backbone) Exec(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	b.state.Commit()
	return nil
}

// View runs a read-only function under the read lock.
func (b *Backbone) View(fn func()) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn()
}

// SubscribeEvents merges all four registries' notification feeds into ch.
func (b *Backbone) SubscribeEvents(ch chan<- types.Notification) event.Subscription {
	subs := []event.Subscription{
		b.Identity.SubscribeEvents(ch),
		b.Reputation.SubscribeEvents(ch),
		b.Validation.SubscribeEvents(ch),
		b.Incident.SubscribeEvents(ch),
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer func() {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
		}()
		<-quit
		return nil
	})
}
