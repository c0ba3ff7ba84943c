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

package state

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/trustnet/go-trustnet/core/types"
)

// journalEntry is a modification entry in the state change journal that can
// be reverted on demand.
type journalEntry interface {
	// revert undoes the changes introduced by this journal entry.
	revert(*StateDB)
}

// journal contains the list of state modifications applied since the last
// commit. Registry operations snapshot the journal before mutating and revert
// to the snapshot on any error, which is what makes every operation atomic.
type journal struct {
	entries []journalEntry
}

func newJournal() *journal {
	return &journal{}
}

// append inserts a new modification entry to the end of the change journal.
func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// revert undoes a batch of journalled modifications.
func (j *journal) revert(statedb *StateDB, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].revert(statedb)
	}
	j.entries = j.entries[:snapshot]
}

// length returns the current number of entries in the journal.
func (j *journal) length() int {
	return len(j.entries)
}

type (
	// Identity registry changes.
	createAgentChange struct {
		id uint64
	}
	agentURIChange struct {
		id       uint64
		prevURI  string
		prevHash common.Hash
	}
	agentMetadataChange struct {
		id      uint64
		key     string
		prev    []byte
		existed bool
	}
	agentWalletChange struct {
		id   uint64
		prev common.Address
	}
	agentOwnerChange struct {
		id   uint64
		prev common.Address
	}
	agentActiveChange struct {
		id   uint64
		prev bool
	}
	agentNonceChange struct {
		id   uint64
		prev uint64
	}
	approvalChange struct {
		owner    common.Address
		operator common.Address
		prev     bool
	}

	// Reputation registry changes.
	feedbackAppendChange struct {
		agentID   uint64
		newAuthor bool
	}
	feedbackRevokeChange struct {
		agentID uint64
		index   uint64
	}
	feedbackResponseChange struct {
		agentID uint64
		index   uint64
	}

	// Validation registry changes.
	validationCreateChange struct {
		id common.Hash
	}
	sequenceChange struct {
		requester common.Address
		prev      uint64
	}
	validationDecisionChange struct {
		id common.Hash
	}

	// Incident registry changes.
	incidentCreateChange struct {
		id uint64
	}
	incidentRespondChange struct {
		id uint64
	}
	incidentResolveChange struct {
		id uint64
	}

	// Event buffer changes.
	eventAddedChange struct {
		index int
	}
)

func (ch createAgentChange) revert(s *StateDB) {
	delete(s.agents, ch.id)
	s.nextAgentID = ch.id
}

func (ch agentURIChange) revert(s *StateDB) {
	agent := s.agents[ch.id]
	agent.URI = ch.prevURI
	agent.MetadataHash = ch.prevHash
}

func (ch agentMetadataChange) revert(s *StateDB) {
	agent := s.agents[ch.id]
	if !ch.existed {
		delete(agent.Metadata, ch.key)
		return
	}
	agent.Metadata[ch.key] = ch.prev
}

func (ch agentWalletChange) revert(s *StateDB) {
	s.agents[ch.id].Wallet = ch.prev
}

func (ch agentOwnerChange) revert(s *StateDB) {
	s.agents[ch.id].Owner = ch.prev
}

func (ch agentActiveChange) revert(s *StateDB) {
	s.agents[ch.id].Active = ch.prev
}

func (ch agentNonceChange) revert(s *StateDB) {
	s.agents[ch.id].DelegationNonce = ch.prev
}

func (ch approvalChange) revert(s *StateDB) {
	if ch.prev {
		s.approvals[ch.owner][ch.operator] = true
		return
	}
	if operators := s.approvals[ch.owner]; operators != nil {
		delete(operators, ch.operator)
	}
}

func (ch feedbackAppendChange) revert(s *StateDB) {
	list := s.feedback[ch.agentID]
	fb := list[len(list)-1]
	s.feedback[ch.agentID] = list[:len(list)-1]
	if ch.newAuthor {
		authors := s.authors[ch.agentID]
		s.authors[ch.agentID] = authors[:len(authors)-1]
		s.authorSets[ch.agentID].Remove(fb.Author)
	}
}

func (ch feedbackRevokeChange) revert(s *StateDB) {
	s.feedback[ch.agentID][ch.index].Revoked = false
}

func (ch feedbackResponseChange) revert(s *StateDB) {
	fb := s.feedback[ch.agentID][ch.index]
	fb.Responses = fb.Responses[:len(fb.Responses)-1]
}

func (ch validationCreateChange) revert(s *StateDB) {
	req := s.validations[ch.id]
	delete(s.validations, ch.id)
	s.agentRequests[req.AgentID] = trimLastHash(s.agentRequests[req.AgentID])
	s.validatorRequests[req.Validator] = trimLastHash(s.validatorRequests[req.Validator])
	s.requesterRequests[req.Requester] = trimLastHash(s.requesterRequests[req.Requester])
}

func (ch sequenceChange) revert(s *StateDB) {
	if ch.prev == 0 {
		delete(s.sequence, ch.requester)
		return
	}
	s.sequence[ch.requester] = ch.prev
}

func (ch validationDecisionChange) revert(s *StateDB) {
	req := s.validations[ch.id]
	req.Status = types.ValidationPending
	req.ResultURI = ""
	req.ResultHash = common.Hash{}
	req.Tag = ""
	req.Outcome = 0
	req.DecidedAt = 0
}

func (ch incidentCreateChange) revert(s *StateDB) {
	incident := s.incidents[ch.id]
	delete(s.incidents, ch.id)
	s.nextIncidentID = ch.id
	s.agentIncidents[incident.AgentID] = trimLastUint64(s.agentIncidents[incident.AgentID])
	s.reporterIncidents[incident.Reporter] = trimLastUint64(s.reporterIncidents[incident.Reporter])
}

func (ch incidentRespondChange) revert(s *StateDB) {
	incident := s.incidents[ch.id]
	incident.Status = types.IncidentOpen
	incident.ResponseURI = ""
	incident.ResponseHash = common.Hash{}
	incident.Responder = common.Address{}
	incident.RespondedAt = 0
}

func (ch incidentResolveChange) revert(s *StateDB) {
	incident := s.incidents[ch.id]
	incident.Status = types.IncidentResponded
	incident.Resolution = types.ResolutionNone
	incident.ResolvedAt = 0
}

func (ch eventAddedChange) revert(s *StateDB) {
	if ch.index <= len(s.events) {
		s.events = s.events[:ch.index]
	}
}

func trimLastHash(list []common.Hash) []common.Hash {
	return list[:len(list)-1]
}

func trimLastUint64(list []uint64) []uint64 {
	return list[:len(list)-1]
}
