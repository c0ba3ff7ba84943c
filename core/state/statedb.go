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

// Package state holds the registries' shared journaled state. All mutation
// funnels through journaled setters so that a registry operation can revert
// to its entry snapshot on any error, leaving no observable partial change.
// Execution is serialized by the surrounding environment; the state itself
// takes no locks.
package state

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trustnet/go-trustnet/core/rawdb"
	"github.com/trustnet/go-trustnet/core/types"
	"github.com/trustnet/go-trustnet/params"
)

// revision is a journal checkpoint handed out by Snapshot.
type revision struct {
	id           int
	journalIndex int
}

// StateDB holds all four registries' record families. Each registry touches
// only its own family; the identity family is additionally read (never
// written) by the other three through the core.IdentityReader capability.
type StateDB struct {
	db rawdb.Database // nil for a purely ephemeral state

	// Identity registry.
	agents      map[uint64]*types.Agent
	nextAgentID uint64
	approvals   map[common.Address]map[common.Address]bool

	// Reputation registry.
	feedback   map[uint64][]*types.Feedback
	authors    map[uint64][]common.Address
	authorSets map[uint64]mapset.Set

	// Validation registry.
	validations       map[common.Hash]*types.ValidationRequest
	sequence          map[common.Address]uint64
	agentRequests     map[uint64][]common.Hash
	validatorRequests map[common.Address][]common.Hash
	requesterRequests map[common.Address][]common.Hash

	// Incident registry.
	incidents         map[uint64]*types.Incident
	nextIncidentID    uint64
	agentIncidents    map[uint64][]uint64
	reporterIncidents map[common.Address][]uint64

	// Pending notifications, journaled with the state.
	events []types.Event

	journal        *journal
	validRevisions []revision
	nextRevisionID int

	// Dirty tracking for Commit.
	dirtyAgents      map[uint64]struct{}
	dirtyFeedback    map[uint64]struct{}
	dirtyValidations map[common.Hash]struct{}
	dirtyIncidents   map[uint64]struct{}
	dirtySequences   map[common.Address]struct{}
	dirtyApprovals   bool
	dirtyCounters    bool
}

// New creates a state backed by the given database, loading every persisted
// record. A nil database yields an ephemeral state.
func New(db rawdb.Database) *StateDB {
	s := &StateDB{
		db:                db,
		agents:            make(map[uint64]*types.Agent),
		nextAgentID:       params.FirstAgentID,
		approvals:         make(map[common.Address]map[common.Address]bool),
		feedback:          make(map[uint64][]*types.Feedback),
		authors:           make(map[uint64][]common.Address),
		authorSets:        make(map[uint64]mapset.Set),
		validations:       make(map[common.Hash]*types.ValidationRequest),
		sequence:          make(map[common.Address]uint64),
		agentRequests:     make(map[uint64][]common.Hash),
		validatorRequests: make(map[common.Address][]common.Hash),
		requesterRequests: make(map[common.Address][]common.Hash),
		incidents:         make(map[uint64]*types.Incident),
		nextIncidentID:    params.FirstIncidentID,
		agentIncidents:    make(map[uint64][]uint64),
		reporterIncidents: make(map[common.Address][]uint64),
		journal:           newJournal(),
		dirtyAgents:       make(map[uint64]struct{}),
		dirtyFeedback:     make(map[uint64]struct{}),
		dirtyValidations:  make(map[common.Hash]struct{}),
		dirtyIncidents:    make(map[uint64]struct{}),
		dirtySequences:    make(map[common.Address]struct{}),
	}
	if db != nil {
		s.load()
	}
	return s
}

func (s *StateDB) load() {
	s.nextAgentID = rawdb.ReadNextAgentID(s.db)
	s.nextIncidentID = rawdb.ReadNextIncidentID(s.db)
	s.approvals = rawdb.ReadApprovals(s.db)
	s.sequence = rawdb.ReadAllRequesterSequences(s.db)

	for _, agent := range rawdb.ReadAllAgents(s.db) {
		s.agents[agent.ID] = agent
	}
	for agentID, list := range rawdb.ReadAllFeedback(s.db) {
		s.feedback[agentID] = list
		set := mapset.NewSet()
		for _, fb := range list {
			if set.Add(fb.Author) {
				s.authors[agentID] = append(s.authors[agentID], fb.Author)
			}
		}
		s.authorSets[agentID] = set
	}

	reqs := rawdb.ReadAllValidations(s.db)
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt != reqs[j].CreatedAt {
			return reqs[i].CreatedAt < reqs[j].CreatedAt
		}
		return reqs[i].ID.Hex() < reqs[j].ID.Hex()
	})
	for _, req := range reqs {
		s.validations[req.ID] = req
		s.agentRequests[req.AgentID] = append(s.agentRequests[req.AgentID], req.ID)
		s.validatorRequests[req.Validator] = append(s.validatorRequests[req.Validator], req.ID)
		s.requesterRequests[req.Requester] = append(s.requesterRequests[req.Requester], req.ID)
	}

	incidents := rawdb.ReadAllIncidents(s.db)
	sort.Slice(incidents, func(i, j int) bool { return incidents[i].ID < incidents[j].ID })
	for _, incident := range incidents {
		s.incidents[incident.ID] = incident
		s.agentIncidents[incident.AgentID] = append(s.agentIncidents[incident.AgentID], incident.ID)
		s.reporterIncidents[incident.Reporter] = append(s.reporterIncidents[incident.Reporter], incident.ID)
	}
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id, s.journal.length()})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) {
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := s.validRevisions[idx].journalIndex

	s.journal.revert(s, snapshot)
	s.validRevisions = s.validRevisions[:idx]
}

//
// Identity family.
//

// CreateAgent mints the next sequential agent identity.
func (s *StateDB) CreateAgent(owner common.Address, uri string, now uint64) *types.Agent {
	agent := &types.Agent{
		ID:        s.nextAgentID,
		Owner:     owner,
		URI:       uri,
		Active:    true,
		CreatedAt: now,
	}
	s.journal.append(createAgentChange{id: agent.ID})
	s.agents[agent.ID] = agent
	s.nextAgentID++
	s.dirtyAgents[agent.ID] = struct{}{}
	s.dirtyCounters = true
	return agent
}

// GetAgent returns the agent record, or nil when the id was never minted.
func (s *StateDB) GetAgent(id uint64) *types.Agent {
	return s.agents[id]
}

// HasAgent reports whether the id names a minted agent.
func (s *StateDB) HasAgent(id uint64) bool {
	_, ok := s.agents[id]
	return ok
}

// AgentCount returns the number of agents minted so far.
func (s *StateDB) AgentCount() uint64 {
	return s.nextAgentID - params.FirstAgentID
}

// SetAgentURI updates the agent's URI and metadata integrity hash.
func (s *StateDB) SetAgentURI(id uint64, uri string, hash common.Hash) {
	agent := s.agents[id]
	s.journal.append(agentURIChange{id: id, prevURI: agent.URI, prevHash: agent.MetadataHash})
	agent.URI = uri
	agent.MetadataHash = hash
	s.dirtyAgents[id] = struct{}{}
}

// SetAgentMetadata sets one metadata key. An empty value deletes the key.
func (s *StateDB) SetAgentMetadata(id uint64, key string, value []byte) {
	agent := s.agents[id]
	prev, existed := agent.Metadata[key]
	s.journal.append(agentMetadataChange{id: id, key: key, prev: prev, existed: existed})
	if len(value) == 0 {
		delete(agent.Metadata, key)
	} else {
		if agent.Metadata == nil {
			agent.Metadata = make(map[string][]byte)
		}
		agent.Metadata[key] = append([]byte(nil), value...)
	}
	s.dirtyAgents[id] = struct{}{}
}

// SetAgentWallet updates the delegated wallet address.
func (s *StateDB) SetAgentWallet(id uint64, wallet common.Address) {
	agent := s.agents[id]
	s.journal.append(agentWalletChange{id: id, prev: agent.Wallet})
	agent.Wallet = wallet
	s.dirtyAgents[id] = struct{}{}
}

// SetAgentOwner updates the owning address.
func (s *StateDB) SetAgentOwner(id uint64, owner common.Address) {
	agent := s.agents[id]
	s.journal.append(agentOwnerChange{id: id, prev: agent.Owner})
	agent.Owner = owner
	s.dirtyAgents[id] = struct{}{}
}

// SetAgentActive flips the soft lifecycle flag.
func (s *StateDB) SetAgentActive(id uint64, active bool) {
	agent := s.agents[id]
	s.journal.append(agentActiveChange{id: id, prev: agent.Active})
	agent.Active = active
	s.dirtyAgents[id] = struct{}{}
}

// SetDelegationNonce records the delegation nonce after a consumed proof.
func (s *StateDB) SetDelegationNonce(id uint64, nonce uint64) {
	agent := s.agents[id]
	s.journal.append(agentNonceChange{id: id, prev: agent.DelegationNonce})
	agent.DelegationNonce = nonce
	s.dirtyAgents[id] = struct{}{}
}

// SetApproval records or clears an operator-for-all approval.
func (s *StateDB) SetApproval(owner, operator common.Address, approved bool) {
	s.journal.append(approvalChange{owner: owner, operator: operator, prev: s.approvals[owner][operator]})
	if approved {
		if s.approvals[owner] == nil {
			s.approvals[owner] = make(map[common.Address]bool)
		}
		s.approvals[owner][operator] = true
	} else if operators := s.approvals[owner]; operators != nil {
		delete(operators, operator)
	}
	s.dirtyApprovals = true
}

// Approval reports whether operator may act for every agent owned by owner.
func (s *StateDB) Approval(owner, operator common.Address) bool {
	return s.approvals[owner][operator]
}

//
// Reputation family.
//

// AppendFeedback appends one feedback record and returns its index.
func (s *StateDB) AppendFeedback(agentID uint64, fb *types.Feedback) uint64 {
	set := s.authorSets[agentID]
	if set == nil {
		set = mapset.NewSet()
		s.authorSets[agentID] = set
	}
	newAuthor := set.Add(fb.Author)
	if newAuthor {
		s.authors[agentID] = append(s.authors[agentID], fb.Author)
	}
	s.journal.append(feedbackAppendChange{agentID: agentID, newAuthor: newAuthor})
	index := uint64(len(s.feedback[agentID]))
	s.feedback[agentID] = append(s.feedback[agentID], fb)
	s.dirtyFeedback[agentID] = struct{}{}
	return index
}

// FeedbackList returns the agent's feedback records in submission order.
func (s *StateDB) FeedbackList(agentID uint64) []*types.Feedback {
	return s.feedback[agentID]
}

// GetFeedback returns the record at the given index, or nil when out of range.
func (s *StateDB) GetFeedback(agentID, index uint64) *types.Feedback {
	list := s.feedback[agentID]
	if index >= uint64(len(list)) {
		return nil
	}
	return list[index]
}

// RevokeFeedback flips the one-way revoked flag.
func (s *StateDB) RevokeFeedback(agentID, index uint64) {
	s.journal.append(feedbackRevokeChange{agentID: agentID, index: index})
	s.feedback[agentID][index].Revoked = true
	s.dirtyFeedback[agentID] = struct{}{}
}

// AppendFeedbackResponse extends a feedback item's response thread.
func (s *StateDB) AppendFeedbackResponse(agentID, index uint64, resp types.FeedbackResponse) {
	s.journal.append(feedbackResponseChange{agentID: agentID, index: index})
	fb := s.feedback[agentID][index]
	fb.Responses = append(fb.Responses, resp)
	s.dirtyFeedback[agentID] = struct{}{}
}

// Authors returns the distinct feedback authors in first-submission order.
func (s *StateDB) Authors(agentID uint64) []common.Address {
	return s.authors[agentID]
}

//
// Validation family.
//

// IncSequence bumps and returns the requester's sequence counter.
func (s *StateDB) IncSequence(requester common.Address) uint64 {
	prev := s.sequence[requester]
	s.journal.append(sequenceChange{requester: requester, prev: prev})
	s.sequence[requester] = prev + 1
	s.dirtySequences[requester] = struct{}{}
	return prev + 1
}

// Sequence returns the requester's current sequence counter.
func (s *StateDB) Sequence(requester common.Address) uint64 {
	return s.sequence[requester]
}

// CreateValidation inserts a freshly derived request record.
func (s *StateDB) CreateValidation(req *types.ValidationRequest) {
	s.journal.append(validationCreateChange{id: req.ID})
	s.validations[req.ID] = req
	s.agentRequests[req.AgentID] = append(s.agentRequests[req.AgentID], req.ID)
	s.validatorRequests[req.Validator] = append(s.validatorRequests[req.Validator], req.ID)
	s.requesterRequests[req.Requester] = append(s.requesterRequests[req.Requester], req.ID)
	s.dirtyValidations[req.ID] = struct{}{}
}

// GetValidation returns the request record, or nil if unknown.
func (s *StateDB) GetValidation(id common.Hash) *types.ValidationRequest {
	return s.validations[id]
}

// HasValidation reports whether a request with the derived id exists.
func (s *StateDB) HasValidation(id common.Hash) bool {
	_, ok := s.validations[id]
	return ok
}

// DecideValidation moves a pending request into its terminal state.
func (s *StateDB) DecideValidation(id common.Hash, status types.ValidationStatus, outcome uint8, resultURI string, resultHash common.Hash, tag string, now uint64) {
	s.journal.append(validationDecisionChange{id: id})
	req := s.validations[id]
	req.Status = status
	req.Outcome = outcome
	req.ResultURI = resultURI
	req.ResultHash = resultHash
	req.Tag = tag
	req.DecidedAt = now
	s.dirtyValidations[id] = struct{}{}
}

// AgentRequests returns the ids of requests targeting the agent.
func (s *StateDB) AgentRequests(agentID uint64) []common.Hash {
	return s.agentRequests[agentID]
}

// ValidatorRequests returns the ids of requests naming the validator.
func (s *StateDB) ValidatorRequests(validator common.Address) []common.Hash {
	return s.validatorRequests[validator]
}

// RequesterRequests returns the ids of requests created by the requester.
func (s *StateDB) RequesterRequests(requester common.Address) []common.Hash {
	return s.requesterRequests[requester]
}

//
// Incident family.
//

// CreateIncident assigns the next sequential incident id and inserts the
// record.
func (s *StateDB) CreateIncident(incident *types.Incident) uint64 {
	incident.ID = s.nextIncidentID
	s.journal.append(incidentCreateChange{id: incident.ID})
	s.incidents[incident.ID] = incident
	s.nextIncidentID++
	s.agentIncidents[incident.AgentID] = append(s.agentIncidents[incident.AgentID], incident.ID)
	s.reporterIncidents[incident.Reporter] = append(s.reporterIncidents[incident.Reporter], incident.ID)
	s.dirtyIncidents[incident.ID] = struct{}{}
	s.dirtyCounters = true
	return incident.ID
}

// GetIncident returns the incident record, or nil if unknown.
func (s *StateDB) GetIncident(id uint64) *types.Incident {
	return s.incidents[id]
}

// RespondIncident records the agent authority's response and advances the
// status to Responded.
func (s *StateDB) RespondIncident(id uint64, uri string, hash common.Hash, responder common.Address, now uint64) {
	s.journal.append(incidentRespondChange{id: id})
	incident := s.incidents[id]
	incident.Status = types.IncidentResponded
	incident.ResponseURI = uri
	incident.ResponseHash = hash
	incident.Responder = responder
	incident.RespondedAt = now
	s.dirtyIncidents[id] = struct{}{}
}

// ResolveIncident records the reporter's resolution and advances the status
// to Resolved.
func (s *StateDB) ResolveIncident(id uint64, resolution types.Resolution, now uint64) {
	s.journal.append(incidentResolveChange{id: id})
	incident := s.incidents[id]
	incident.Status = types.IncidentResolved
	incident.Resolution = resolution
	incident.ResolvedAt = now
	s.dirtyIncidents[id] = struct{}{}
}

// AgentIncidents returns the incident ids filed against the agent.
func (s *StateDB) AgentIncidents(agentID uint64) []uint64 {
	return s.agentIncidents[agentID]
}

// ReporterIncidents returns the incident ids filed by the reporter.
func (s *StateDB) ReporterIncidents(reporter common.Address) []uint64 {
	return s.reporterIncidents[reporter]
}

//
// Events.
//

// AddEvent buffers a notification. The buffer is journaled: reverting an
// operation drops its events before any observer sees them.
func (s *StateDB) AddEvent(ev types.Event) {
	s.journal.append(eventAddedChange{index: len(s.events)})
	s.events = append(s.events, ev)
}

// PullEvents drains the buffered notifications of a committed operation.
func (s *StateDB) PullEvents() []types.Event {
	events := s.events
	s.events = nil
	return events
}

// Commit persists every dirty record to the backing database and resets the
// journal. With no backing database it only resets the journal.
func (s *StateDB) Commit() {
	if s.db != nil {
		for id := range s.dirtyAgents {
			if agent, ok := s.agents[id]; ok {
				rawdb.WriteAgent(s.db, agent)
			}
		}
		for agentID := range s.dirtyFeedback {
			rawdb.WriteFeedbackList(s.db, agentID, s.feedback[agentID])
		}
		for id := range s.dirtyValidations {
			if req, ok := s.validations[id]; ok {
				rawdb.WriteValidation(s.db, req)
			}
		}
		for id := range s.dirtyIncidents {
			if incident, ok := s.incidents[id]; ok {
				rawdb.WriteIncident(s.db, incident)
			}
		}
		for requester := range s.dirtySequences {
			rawdb.WriteRequesterSequence(s.db, requester, s.sequence[requester])
		}
		if s.dirtyApprovals {
			rawdb.WriteApprovals(s.db, s.approvals)
		}
		if s.dirtyCounters {
			rawdb.WriteNextAgentID(s.db, s.nextAgentID)
			rawdb.WriteNextIncidentID(s.db, s.nextIncidentID)
		}
	}
	s.dirtyAgents = make(map[uint64]struct{})
	s.dirtyFeedback = make(map[uint64]struct{})
	s.dirtyValidations = make(map[common.Hash]struct{})
	s.dirtyIncidents = make(map[uint64]struct{})
	s.dirtySequences = make(map[common.Address]struct{})
	s.dirtyApprovals = false
	s.dirtyCounters = false

	s.journal = newJournal()
	s.validRevisions = s.validRevisions[:0]
	s.nextRevisionID = 0
}
