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

package rawdb

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/trustnet/go-trustnet/core/types"
	"github.com/trustnet/go-trustnet/params"
)

// RLP cannot encode maps or signed integers, so agents and feedback are
// stored through flattened storage shapes; validation requests and incidents
// encode directly.

type storedMetadataPair struct {
	Key   string
	Value []byte
}

type storedAgent struct {
	ID              uint64
	Owner           common.Address
	URI             string
	MetadataHash    common.Hash
	Metadata        []storedMetadataPair
	Wallet          common.Address
	Active          bool
	DelegationNonce uint64
	CreatedAt       uint64
}

type storedScore struct {
	Neg      bool
	Mag      uint64
	Decimals uint8
}

type storedFeedback struct {
	Author    common.Address
	Content   string
	Sentiment uint8
	HasScore  bool
	Score     storedScore
	Tag1      string
	Tag2      string
	FileURI   string
	FileHash  common.Hash
	CreatedAt uint64
	Revoked   bool
	Responses []types.FeedbackResponse
}

func toStoredAgent(agent *types.Agent) *storedAgent {
	stored := &storedAgent{
		ID:              agent.ID,
		Owner:           agent.Owner,
		URI:             agent.URI,
		MetadataHash:    agent.MetadataHash,
		Wallet:          agent.Wallet,
		Active:          agent.Active,
		DelegationNonce: agent.DelegationNonce,
		CreatedAt:       agent.CreatedAt,
	}
	for k, v := range agent.Metadata {
		stored.Metadata = append(stored.Metadata, storedMetadataPair{Key: k, Value: v})
	}
	sort.Slice(stored.Metadata, func(i, j int) bool {
		return stored.Metadata[i].Key < stored.Metadata[j].Key
	})
	return stored
}

func fromStoredAgent(stored *storedAgent) *types.Agent {
	agent := &types.Agent{
		ID:              stored.ID,
		Owner:           stored.Owner,
		URI:             stored.URI,
		MetadataHash:    stored.MetadataHash,
		Wallet:          stored.Wallet,
		Active:          stored.Active,
		DelegationNonce: stored.DelegationNonce,
		CreatedAt:       stored.CreatedAt,
	}
	if len(stored.Metadata) > 0 {
		agent.Metadata = make(map[string][]byte, len(stored.Metadata))
		for _, pair := range stored.Metadata {
			agent.Metadata[pair.Key] = pair.Value
		}
	}
	return agent
}

func toStoredFeedback(fb *types.Feedback) *storedFeedback {
	stored := &storedFeedback{
		Author:    fb.Author,
		Content:   fb.Content,
		Sentiment: uint8(fb.Sentiment),
		Tag1:      fb.Tag1,
		Tag2:      fb.Tag2,
		FileURI:   fb.FileURI,
		FileHash:  fb.FileHash,
		CreatedAt: fb.CreatedAt,
		Revoked:   fb.Revoked,
		Responses: fb.Responses,
	}
	if fb.Score != nil {
		stored.HasScore = true
		stored.Score.Decimals = fb.Score.Decimals
		if fb.Score.Value < 0 {
			stored.Score.Neg = true
			stored.Score.Mag = uint64(-(fb.Score.Value + 1)) + 1
		} else {
			stored.Score.Mag = uint64(fb.Score.Value)
		}
	}
	return stored
}

func fromStoredFeedback(stored *storedFeedback) *types.Feedback {
	fb := &types.Feedback{
		Author:    stored.Author,
		Content:   stored.Content,
		Sentiment: types.Sentiment(stored.Sentiment),
		Tag1:      stored.Tag1,
		Tag2:      stored.Tag2,
		FileURI:   stored.FileURI,
		FileHash:  stored.FileHash,
		CreatedAt: stored.CreatedAt,
		Revoked:   stored.Revoked,
		Responses: stored.Responses,
	}
	if stored.HasScore {
		value := int64(stored.Score.Mag)
		if stored.Score.Neg {
			value = -int64(stored.Score.Mag-1) - 1
		}
		fb.Score = &types.Score{Value: value, Decimals: stored.Score.Decimals}
	}
	return fb
}

// WriteAgent stores an agent record.
func WriteAgent(db KeyValueWriter, agent *types.Agent) {
	data, err := rlp.EncodeToBytes(toStoredAgent(agent))
	if err != nil {
		log.Crit("Failed to encode agent", "id", agent.ID, "err", err)
	}
	if err := db.Put(agentKey(agent.ID), data); err != nil {
		log.Crit("Failed to store agent", "id", agent.ID, "err", err)
	}
}

// ReadAgent retrieves an agent record, or nil if absent.
func ReadAgent(db KeyValueReader, id uint64) *types.Agent {
	data, _ := db.Get(agentKey(id))
	if len(data) == 0 {
		return nil
	}
	stored := new(storedAgent)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		log.Error("Invalid agent record", "id", id, "err", err)
		return nil
	}
	return fromStoredAgent(stored)
}

// ReadAllAgents loads every stored agent record.
func ReadAllAgents(db Database) []*types.Agent {
	var agents []*types.Agent
	it := db.NewIterator(agentPrefix)
	defer it.Release()
	for it.Next() {
		stored := new(storedAgent)
		if err := rlp.DecodeBytes(it.Value(), stored); err != nil {
			log.Error("Invalid agent record", "key", it.Key(), "err", err)
			continue
		}
		agents = append(agents, fromStoredAgent(stored))
	}
	return agents
}

// WriteFeedbackList stores the whole ordered feedback list of one agent.
func WriteFeedbackList(db KeyValueWriter, agentID uint64, list []*types.Feedback) {
	stored := make([]*storedFeedback, len(list))
	for i, fb := range list {
		stored[i] = toStoredFeedback(fb)
	}
	data, err := rlp.EncodeToBytes(stored)
	if err != nil {
		log.Crit("Failed to encode feedback list", "agent", agentID, "err", err)
	}
	if err := db.Put(feedbackKey(agentID), data); err != nil {
		log.Crit("Failed to store feedback list", "agent", agentID, "err", err)
	}
}

// ReadFeedbackList retrieves one agent's ordered feedback list.
func ReadFeedbackList(db KeyValueReader, agentID uint64) []*types.Feedback {
	data, _ := db.Get(feedbackKey(agentID))
	if len(data) == 0 {
		return nil
	}
	var stored []*storedFeedback
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		log.Error("Invalid feedback list", "agent", agentID, "err", err)
		return nil
	}
	list := make([]*types.Feedback, len(stored))
	for i, sf := range stored {
		list[i] = fromStoredFeedback(sf)
	}
	return list
}

// ReadAllFeedback loads every stored feedback list keyed by agent id.
func ReadAllFeedback(db Database) map[uint64][]*types.Feedback {
	all := make(map[uint64][]*types.Feedback)
	it := db.NewIterator(feedbackPrefix)
	defer it.Release()
	for it.Next() {
		var stored []*storedFeedback
		if err := rlp.DecodeBytes(it.Value(), &stored); err != nil {
			log.Error("Invalid feedback list", "key", it.Key(), "err", err)
			continue
		}
		key := it.Key()
		agentID := decodeUint64(key[len(key)-8:])
		list := make([]*types.Feedback, len(stored))
		for i, sf := range stored {
			list[i] = fromStoredFeedback(sf)
		}
		all[agentID] = list
	}
	return all
}

// WriteValidation stores a validation request record.
func WriteValidation(db KeyValueWriter, req *types.ValidationRequest) {
	data, err := rlp.EncodeToBytes(req)
	if err != nil {
		log.Crit("Failed to encode validation request", "id", req.ID, "err", err)
	}
	if err := db.Put(validationKey(req.ID), data); err != nil {
		log.Crit("Failed to store validation request", "id", req.ID, "err", err)
	}
}

// ReadValidation retrieves a validation request record, or nil if absent.
func ReadValidation(db KeyValueReader, id common.Hash) *types.ValidationRequest {
	data, _ := db.Get(validationKey(id))
	if len(data) == 0 {
		return nil
	}
	req := new(types.ValidationRequest)
	if err := rlp.DecodeBytes(data, req); err != nil {
		log.Error("Invalid validation request", "id", id, "err", err)
		return nil
	}
	return req
}

// ReadAllValidations loads every stored validation request.
func ReadAllValidations(db Database) []*types.ValidationRequest {
	var reqs []*types.ValidationRequest
	it := db.NewIterator(validationPrefix)
	defer it.Release()
	for it.Next() {
		req := new(types.ValidationRequest)
		if err := rlp.DecodeBytes(it.Value(), req); err != nil {
			log.Error("Invalid validation request", "key", it.Key(), "err", err)
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// WriteIncident stores an incident record.
func WriteIncident(db KeyValueWriter, incident *types.Incident) {
	data, err := rlp.EncodeToBytes(incident)
	if err != nil {
		log.Crit("Failed to encode incident", "id", incident.ID, "err", err)
	}
	if err := db.Put(incidentKey(incident.ID), data); err != nil {
		log.Crit("Failed to store incident", "id", incident.ID, "err", err)
	}
}

// ReadIncident retrieves an incident record, or nil if absent.
func ReadIncident(db KeyValueReader, id uint64) *types.Incident {
	data, _ := db.Get(incidentKey(id))
	if len(data) == 0 {
		return nil
	}
	incident := new(types.Incident)
	if err := rlp.DecodeBytes(data, incident); err != nil {
		log.Error("Invalid incident record", "id", id, "err", err)
		return nil
	}
	return incident
}

// ReadAllIncidents loads every stored incident record.
func ReadAllIncidents(db Database) []*types.Incident {
	var incidents []*types.Incident
	it := db.NewIterator(incidentPrefix)
	defer it.Release()
	for it.Next() {
		incident := new(types.Incident)
		if err := rlp.DecodeBytes(it.Value(), incident); err != nil {
			log.Error("Invalid incident record", "key", it.Key(), "err", err)
			continue
		}
		incidents = append(incidents, incident)
	}
	return incidents
}

// WriteRequesterSequence stores one requester's validation sequence counter.
func WriteRequesterSequence(db KeyValueWriter, requester common.Address, seq uint64) {
	if err := db.Put(sequenceKey(requester), encodeUint64(seq)); err != nil {
		log.Crit("Failed to store requester sequence", "requester", requester, "err", err)
	}
}

// ReadAllRequesterSequences loads every persisted sequence counter.
func ReadAllRequesterSequences(db Database) map[common.Address]uint64 {
	seqs := make(map[common.Address]uint64)
	it := db.NewIterator(sequencePrefix)
	defer it.Release()
	for it.Next() {
		key := it.Key()
		if len(key) != len(sequencePrefix)+common.AddressLength || len(it.Value()) != 8 {
			continue
		}
		var addr common.Address
		copy(addr[:], key[len(sequencePrefix):])
		seqs[addr] = decodeUint64(it.Value())
	}
	return seqs
}

type storedApproval struct {
	Owner    common.Address
	Operator common.Address
}

// WriteApprovals stores the full operator-approval relation.
func WriteApprovals(db KeyValueWriter, approvals map[common.Address]map[common.Address]bool) {
	var stored []storedApproval
	for owner, operators := range approvals {
		for operator, ok := range operators {
			if ok {
				stored = append(stored, storedApproval{Owner: owner, Operator: operator})
			}
		}
	}
	sort.Slice(stored, func(i, j int) bool {
		if stored[i].Owner != stored[j].Owner {
			return stored[i].Owner.Hex() < stored[j].Owner.Hex()
		}
		return stored[i].Operator.Hex() < stored[j].Operator.Hex()
	})
	data, err := rlp.EncodeToBytes(stored)
	if err != nil {
		log.Crit("Failed to encode approvals", "err", err)
	}
	if err := db.Put(approvalsKey, data); err != nil {
		log.Crit("Failed to store approvals", "err", err)
	}
}

// ReadApprovals loads the operator-approval relation.
func ReadApprovals(db KeyValueReader) map[common.Address]map[common.Address]bool {
	approvals := make(map[common.Address]map[common.Address]bool)
	data, _ := db.Get(approvalsKey)
	if len(data) == 0 {
		return approvals
	}
	var stored []storedApproval
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		log.Error("Invalid approvals record", "err", err)
		return approvals
	}
	for _, entry := range stored {
		if approvals[entry.Owner] == nil {
			approvals[entry.Owner] = make(map[common.Address]bool)
		}
		approvals[entry.Owner][entry.Operator] = true
	}
	return approvals
}

// WriteNextAgentID stores the next agent id to mint.
func WriteNextAgentID(db KeyValueWriter, next uint64) {
	if err := db.Put(nextAgentIDKey, encodeUint64(next)); err != nil {
		log.Crit("Failed to store next agent id", "err", err)
	}
}

// ReadNextAgentID retrieves the next agent id to mint.
func ReadNextAgentID(db KeyValueReader) uint64 {
	data, _ := db.Get(nextAgentIDKey)
	if len(data) != 8 {
		return params.FirstAgentID
	}
	return decodeUint64(data)
}

// WriteNextIncidentID stores the next incident id to assign.
func WriteNextIncidentID(db KeyValueWriter, next uint64) {
	if err := db.Put(nextIncidentIDKey, encodeUint64(next)); err != nil {
		log.Crit("Failed to store next incident id", "err", err)
	}
}

// ReadNextIncidentID retrieves the next incident id to assign.
func ReadNextIncidentID(db KeyValueReader) uint64 {
	data, _ := db.Get(nextIncidentIDKey)
	if len(data) != 8 {
		return params.FirstIncidentID
	}
	return decodeUint64(data)
}
