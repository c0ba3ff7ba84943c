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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/trustnet/go-trustnet/core/state"
	"github.com/trustnet/go-trustnet/core/types"
)

// IncidentRegistry tracks misbehavior reports filed against agents. Every
// incident walks the strict Open -> Responded -> Resolved ladder: the agent
// side answers first, then the reporter closes the loop with a resolution
// from the fixed vocabulary.
type IncidentRegistry struct {
	state    *state.StateDB
	identity IdentityReader
	feed     event.Feed
	now      func() uint64
}

// NewIncidentRegistry creates the incident registry over the given state.
func NewIncidentRegistry(st *state.StateDB, identity IdentityReader) *IncidentRegistry {
	return &IncidentRegistry{
		state:    st,
		identity: identity,
		now:      func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SubscribeEvents delivers this registry's notifications to ch.
func (r *IncidentRegistry) SubscribeEvents(ch chan<- types.Notification) event.Subscription {
	return r.feed.Subscribe(ch)
}

func (r *IncidentRegistry) publish() {
	for _, ev := range r.state.PullEvents() {
		r.feed.Send(types.Notification{Event: ev})
	}
}

// Report files a new open incident against the agent and returns its id.
// Anyone with a non-zero address may report, the agent's own controllers
// included.
func (r *IncidentRegistry) Report(reporter common.Address, agentID uint64, reportURI string, reportHash common.Hash, category string) (uint64, error) {
	if reporter == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if err := checkURI(reportURI); err != nil {
		return 0, err
	}
	if err := checkTag(category); err != nil {
		return 0, err
	}
	if !r.identity.Exists(agentID) {
		return 0, ErrAgentNotFound
	}
	id := r.state.CreateIncident(&types.Incident{
		AgentID:    agentID,
		Reporter:   reporter,
		ReportURI:  reportURI,
		ReportHash: reportHash,
		Category:   category,
		CreatedAt:  r.now(),
		Status:     types.IncidentOpen,
	})
	r.state.AddEvent(types.IncidentReported{
		IncidentID: id,
		AgentID:    agentID,
		Reporter:   reporter,
		Category:   category,
	})
	r.publish()
	log.Debug("Incident reported", "id", id, "agent", agentID, "category", category)
	return id, nil
}

// Respond records the agent side's answer to an open incident. The caller
// must be the agent's current owner or delegated wallet.
func (r *IncidentRegistry) Respond(caller common.Address, id uint64, responseURI string, responseHash common.Hash) error {
	if err := checkURI(responseURI); err != nil {
		return err
	}
	incident := r.state.GetIncident(id)
	if incident == nil {
		return ErrIncidentNotFound
	}
	authority, err := r.identity.IsAuthority(incident.AgentID, caller)
	if err != nil {
		return err
	}
	if !authority {
		return ErrNotAuthority
	}
	if incident.Status != types.IncidentOpen {
		return ErrIncidentNotOpen
	}
	r.state.RespondIncident(id, responseURI, responseHash, caller, r.now())
	r.state.AddEvent(types.IncidentRespondedEvent{
		IncidentID: id,
		AgentID:    incident.AgentID,
		Responder:  caller,
	})
	r.publish()
	return nil
}

// Resolve lets the original reporter close a responded incident with one of
// the fixed resolution codes.
func (r *IncidentRegistry) Resolve(caller common.Address, id uint64, resolution types.Resolution) error {
	if !resolution.Valid() {
		return ErrInvalidResolution
	}
	incident := r.state.GetIncident(id)
	if incident == nil {
		return ErrIncidentNotFound
	}
	if caller != incident.Reporter {
		return ErrNotReporter
	}
	if incident.Status != types.IncidentResponded {
		return ErrIncidentNotResponded
	}
	r.state.ResolveIncident(id, resolution, r.now())
	r.state.AddEvent(types.IncidentResolvedEvent{
		IncidentID: id,
		AgentID:    incident.AgentID,
		Reporter:   caller,
		Resolution: resolution,
	})
	r.publish()
	return nil
}

// Get returns a copy of the incident record.
func (r *IncidentRegistry) Get(id uint64) (*types.Incident, error) {
	incident := r.state.GetIncident(id)
	if incident == nil {
		return nil, ErrIncidentNotFound
	}
	return incident.Copy(), nil
}

// Exists reports whether the id names a filed incident.
func (r *IncidentRegistry) Exists(id uint64) bool {
	return r.state.GetIncident(id) != nil
}

// ByAgent returns the ids of incidents filed against the agent, in filing
// order.
func (r *IncidentRegistry) ByAgent(agentID uint64) ([]uint64, error) {
	if !r.identity.Exists(agentID) {
		return nil, ErrAgentNotFound
	}
	return append([]uint64(nil), r.state.AgentIncidents(agentID)...), nil
}

// ByReporter returns the ids of incidents filed by the reporter.
func (r *IncidentRegistry) ByReporter(reporter common.Address) []uint64 {
	return append([]uint64(nil), r.state.ReporterIncidents(reporter)...)
}

// Count returns the number of incidents filed against the agent.
func (r *IncidentRegistry) Count(agentID uint64) (uint64, error) {
	if !r.identity.Exists(agentID) {
		return 0, ErrAgentNotFound
	}
	return uint64(len(r.state.AgentIncidents(agentID))), nil
}

// Summary aggregates the agent's incidents by status and resolution.
func (r *IncidentRegistry) Summary(agentID uint64) (types.IncidentSummary, error) {
	if !r.identity.Exists(agentID) {
		return types.IncidentSummary{}, ErrAgentNotFound
	}
	var summary types.IncidentSummary
	for _, id := range r.state.AgentIncidents(agentID) {
		incident := r.state.GetIncident(id)
		summary.Total++
		switch incident.Status {
		case types.IncidentOpen:
			summary.Open++
		case types.IncidentResponded:
			summary.Responded++
		case types.IncidentResolved:
			summary.Resolved++
			switch incident.Resolution {
			case types.ResolutionAcknowledged:
				summary.Acknowledged++
			case types.ResolutionDisputed:
				summary.Disputed++
			case types.ResolutionFixed:
				summary.Fixed++
			case types.ResolutionNotABug:
				summary.NotABug++
			case types.ResolutionDuplicate:
				summary.Duplicate++
			}
		}
	}
	return summary, nil
}
