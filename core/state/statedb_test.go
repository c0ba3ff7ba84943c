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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/trustnet/go-trustnet/core/rawdb"
	"github.com/trustnet/go-trustnet/core/types"
	"github.com/trustnet/go-trustnet/params"
)

func TestCreateAgentRevert(t *testing.T) {
	s := New(nil)

	snap := s.Snapshot()
	agent := s.CreateAgent(common.HexToAddress("0x01"), "ipfs://a", 100)
	require.Equal(t, uint64(params.FirstAgentID), agent.ID)
	require.True(t, s.HasAgent(agent.ID))
	require.Equal(t, uint64(1), s.AgentCount())

	s.RevertToSnapshot(snap)
	require.False(t, s.HasAgent(agent.ID))
	require.Equal(t, uint64(0), s.AgentCount())

	// The reverted id is handed out again.
	agent = s.CreateAgent(common.HexToAddress("0x01"), "ipfs://a", 100)
	require.Equal(t, uint64(params.FirstAgentID), agent.ID)
}

func TestAgentFieldReverts(t *testing.T) {
	s := New(nil)
	agent := s.CreateAgent(common.HexToAddress("0x01"), "ipfs://a", 100)
	id := agent.ID

	snap := s.Snapshot()
	s.SetAgentURI(id, "ipfs://b", common.HexToHash("0x02"))
	s.SetAgentMetadata(id, "model", []byte("m"))
	s.SetAgentWallet(id, common.HexToAddress("0x03"))
	s.SetAgentOwner(id, common.HexToAddress("0x04"))
	s.SetAgentActive(id, false)
	s.SetDelegationNonce(id, 9)
	s.SetApproval(common.HexToAddress("0x01"), common.HexToAddress("0x05"), true)

	s.RevertToSnapshot(snap)
	got := s.GetAgent(id)
	require.Equal(t, "ipfs://a", got.URI)
	require.Equal(t, common.Hash{}, got.MetadataHash)
	require.Empty(t, got.Metadata)
	require.Equal(t, common.Address{}, got.Wallet)
	require.Equal(t, common.HexToAddress("0x01"), got.Owner)
	require.True(t, got.Active)
	require.Equal(t, uint64(0), got.DelegationNonce)
	require.False(t, s.Approval(common.HexToAddress("0x01"), common.HexToAddress("0x05")))
}

func TestMetadataDeleteAndRevert(t *testing.T) {
	s := New(nil)
	agent := s.CreateAgent(common.HexToAddress("0x01"), "", 100)
	s.SetAgentMetadata(agent.ID, "k", []byte("v1"))

	snap := s.Snapshot()
	s.SetAgentMetadata(agent.ID, "k", nil) // empty value deletes
	require.Empty(t, s.GetAgent(agent.ID).Metadata)

	s.RevertToSnapshot(snap)
	require.Equal(t, []byte("v1"), s.GetAgent(agent.ID).Metadata["k"])
}

func TestFeedbackRevert(t *testing.T) {
	s := New(nil)
	agent := s.CreateAgent(common.HexToAddress("0x01"), "", 100)
	author := common.HexToAddress("0x02")

	index := s.AppendFeedback(agent.ID, &types.Feedback{Author: author, Sentiment: types.SentimentPositive})
	require.Equal(t, uint64(0), index)
	require.Equal(t, []common.Address{author}, s.Authors(agent.ID))

	snap := s.Snapshot()
	other := common.HexToAddress("0x03")
	s.AppendFeedback(agent.ID, &types.Feedback{Author: other, Sentiment: types.SentimentNegative})
	s.RevokeFeedback(agent.ID, 0)
	s.AppendFeedbackResponse(agent.ID, 0, types.FeedbackResponse{Responder: common.HexToAddress("0x04")})

	s.RevertToSnapshot(snap)
	require.Len(t, s.FeedbackList(agent.ID), 1)
	require.False(t, s.GetFeedback(agent.ID, 0).Revoked)
	require.Empty(t, s.GetFeedback(agent.ID, 0).Responses)
	// The author set shrinks back with the reverted append.
	require.Equal(t, []common.Address{author}, s.Authors(agent.ID))
}

func TestValidationRevert(t *testing.T) {
	s := New(nil)
	requester := common.HexToAddress("0x01")

	snap := s.Snapshot()
	seq := s.IncSequence(requester)
	require.Equal(t, uint64(1), seq)
	id := common.HexToHash("0xaa")
	s.CreateValidation(&types.ValidationRequest{ID: id, Requester: requester, Validator: common.HexToAddress("0x02"), AgentID: 1})
	require.True(t, s.HasValidation(id))
	s.DecideValidation(id, types.ValidationCompleted, 90, "uri", common.Hash{}, "tag", 200)
	require.Equal(t, types.ValidationCompleted, s.GetValidation(id).Status)

	s.RevertToSnapshot(snap)
	require.False(t, s.HasValidation(id))
	require.Equal(t, uint64(0), s.Sequence(requester))
	require.Empty(t, s.RequesterRequests(requester))
}

func TestDecisionRevertKeepsPending(t *testing.T) {
	s := New(nil)
	id := common.HexToHash("0xaa")
	s.CreateValidation(&types.ValidationRequest{ID: id, AgentID: 1})

	snap := s.Snapshot()
	s.DecideValidation(id, types.ValidationRejected, 10, "uri", common.HexToHash("0xbb"), "tag", 200)
	s.RevertToSnapshot(snap)

	req := s.GetValidation(id)
	require.Equal(t, types.ValidationPending, req.Status)
	require.Zero(t, req.Outcome)
	require.Empty(t, req.ResultURI)
	require.Equal(t, common.Hash{}, req.ResultHash)
	require.Empty(t, req.Tag)
	require.Zero(t, req.DecidedAt)
}

func TestIncidentRevert(t *testing.T) {
	s := New(nil)
	reporter := common.HexToAddress("0x01")

	snap := s.Snapshot()
	id := s.CreateIncident(&types.Incident{AgentID: 1, Reporter: reporter})
	require.Equal(t, uint64(params.FirstIncidentID), id)
	s.RespondIncident(id, "uri", common.Hash{}, common.HexToAddress("0x02"), 200)
	s.ResolveIncident(id, types.ResolutionFixed, 300)
	require.Equal(t, types.IncidentResolved, s.GetIncident(id).Status)

	s.RevertToSnapshot(snap)
	require.Nil(t, s.GetIncident(id))
	require.Empty(t, s.AgentIncidents(1))
	require.Empty(t, s.ReporterIncidents(reporter))
}

func TestEventsJournaled(t *testing.T) {
	s := New(nil)

	s.AddEvent(types.AgentRegistered{AgentID: 1})
	snap := s.Snapshot()
	s.AddEvent(types.AgentStatusChanged{AgentID: 1, Active: false})
	s.AddEvent(types.AgentStatusChanged{AgentID: 1, Active: true})
	s.RevertToSnapshot(snap)

	events := s.PullEvents()
	require.Len(t, events, 1)
	require.Equal(t, "AgentRegistered", events[0].Name())
	require.Empty(t, s.PullEvents())
}

func TestNestedSnapshots(t *testing.T) {
	s := New(nil)
	agent := s.CreateAgent(common.HexToAddress("0x01"), "", 100)

	outer := s.Snapshot()
	s.SetAgentWallet(agent.ID, common.HexToAddress("0x02"))
	inner := s.Snapshot()
	s.SetAgentWallet(agent.ID, common.HexToAddress("0x03"))

	s.RevertToSnapshot(inner)
	require.Equal(t, common.HexToAddress("0x02"), s.GetAgent(agent.ID).Wallet)
	s.RevertToSnapshot(outer)
	require.Equal(t, common.Address{}, s.GetAgent(agent.ID).Wallet)
}

func TestRevertInvalidSnapshotPanics(t *testing.T) {
	s := New(nil)
	require.Panics(t, func() { s.RevertToSnapshot(42) })
}

func TestCommitAndReload(t *testing.T) {
	db := rawdb.NewMemoryDatabase()
	s := New(db)

	owner := common.HexToAddress("0x01")
	agent := s.CreateAgent(owner, "ipfs://a", 100)
	s.SetAgentMetadata(agent.ID, "model", []byte("m"))
	s.SetApproval(owner, common.HexToAddress("0x05"), true)
	s.AppendFeedback(agent.ID, &types.Feedback{Author: common.HexToAddress("0x02"), Sentiment: types.SentimentPositive, CreatedAt: 110})

	requester := common.HexToAddress("0x03")
	seq := s.IncSequence(requester)
	reqID := common.HexToHash("0xaa")
	s.CreateValidation(&types.ValidationRequest{ID: reqID, Requester: requester, Validator: common.HexToAddress("0x04"), AgentID: agent.ID, CreatedAt: 120})
	incidentID := s.CreateIncident(&types.Incident{AgentID: agent.ID, Reporter: requester, CreatedAt: 130})
	s.Commit()

	reloaded := New(db)
	require.True(t, reloaded.HasAgent(agent.ID))
	require.Equal(t, []byte("m"), reloaded.GetAgent(agent.ID).Metadata["model"])
	require.True(t, reloaded.Approval(owner, common.HexToAddress("0x05")))
	require.Len(t, reloaded.FeedbackList(agent.ID), 1)
	require.Equal(t, []common.Address{common.HexToAddress("0x02")}, reloaded.Authors(agent.ID))
	require.Equal(t, seq, reloaded.Sequence(requester))
	require.True(t, reloaded.HasValidation(reqID))
	require.Equal(t, []common.Hash{reqID}, reloaded.RequesterRequests(requester))
	require.NotNil(t, reloaded.GetIncident(incidentID))
	require.Equal(t, []uint64{incidentID}, reloaded.AgentIncidents(agent.ID))

	// Counters continue where they left off.
	next := reloaded.CreateAgent(owner, "", 200)
	require.Equal(t, agent.ID+1, next.ID)
	nextIncident := reloaded.CreateIncident(&types.Incident{AgentID: agent.ID, Reporter: requester})
	require.Equal(t, incidentID+1, nextIncident)
}
