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
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/trustnet/go-trustnet/core/types"
	"github.com/trustnet/go-trustnet/params"
)

func TestAgentStorage(t *testing.T) {
	db := NewMemoryDatabase()

	agent := &types.Agent{
		ID:           3,
		Owner:        common.HexToAddress("0x01"),
		URI:          "ipfs://agent",
		MetadataHash: common.HexToHash("0xbeef"),
		Metadata: map[string][]byte{
			"model":   []byte("m-1"),
			"version": []byte("2"),
		},
		Wallet:          common.HexToAddress("0x02"),
		Active:          true,
		DelegationNonce: 5,
		CreatedAt:       1000,
	}
	WriteAgent(db, agent)

	got := ReadAgent(db, 3)
	require.NotNil(t, got)
	if diff := cmp.Diff(agent, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("agent mismatch (-want +got):\n%s", diff)
	}
	require.Nil(t, ReadAgent(db, 4))
}

func TestFeedbackListStorage(t *testing.T) {
	db := NewMemoryDatabase()

	list := []*types.Feedback{
		{
			Author:    common.HexToAddress("0x01"),
			Content:   "solid work",
			Sentiment: types.SentimentPositive,
			Score:     &types.Score{Value: 92, Decimals: 1},
			Tag1:      "translation",
			CreatedAt: 100,
		},
		{
			Author:    common.HexToAddress("0x02"),
			Content:   "missed the deadline",
			Sentiment: types.SentimentNegative,
			Score:     &types.Score{Value: -15, Decimals: 0},
			CreatedAt: 200,
			Revoked:   true,
			Responses: []types.FeedbackResponse{
				{Responder: common.HexToAddress("0x03"), Content: "disputed", CreatedAt: 250},
			},
		},
		{
			Author:    common.HexToAddress("0x01"),
			Sentiment: types.SentimentNeutral,
			CreatedAt: 300,
		},
	}
	WriteFeedbackList(db, 7, list)

	got := ReadFeedbackList(db, 7)
	require.Len(t, got, 3)
	if diff := cmp.Diff(list, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("feedback mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreStorageExtremes(t *testing.T) {
	db := NewMemoryDatabase()

	for _, value := range []int64{0, -1, 1, math.MaxInt64, math.MinInt64} {
		list := []*types.Feedback{{
			Author:    common.HexToAddress("0x01"),
			Sentiment: types.SentimentNeutral,
			Score:     &types.Score{Value: value, Decimals: 2},
		}}
		WriteFeedbackList(db, 1, list)
		got := ReadFeedbackList(db, 1)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].Score)
		require.Equal(t, value, got[0].Score.Value)
	}
}

func TestValidationStorage(t *testing.T) {
	db := NewMemoryDatabase()

	req := &types.ValidationRequest{
		ID:          common.HexToHash("0x1234"),
		Requester:   common.HexToAddress("0x01"),
		Validator:   common.HexToAddress("0x02"),
		AgentID:     9,
		ContentHash: common.HexToHash("0xdead"),
		URI:         "ipfs://request",
		CreatedAt:   500,
		Status:      types.ValidationCompleted,
		ResultURI:   "ipfs://result",
		ResultHash:  common.HexToHash("0xfeed"),
		Tag:         "benchmark",
		Outcome:     87,
		DecidedAt:   600,
	}
	WriteValidation(db, req)

	got := ReadValidation(db, req.ID)
	require.NotNil(t, got)
	require.Equal(t, req, got)
	require.Nil(t, ReadValidation(db, common.HexToHash("0x5678")))
}

func TestIncidentStorage(t *testing.T) {
	db := NewMemoryDatabase()

	incident := &types.Incident{
		ID:           2,
		AgentID:      9,
		Reporter:     common.HexToAddress("0x01"),
		ReportURI:    "ipfs://report",
		ReportHash:   common.HexToHash("0xdead"),
		Category:     "safety",
		CreatedAt:    500,
		Status:       types.IncidentResolved,
		ResponseURI:  "ipfs://response",
		ResponseHash: common.HexToHash("0xfeed"),
		Responder:    common.HexToAddress("0x02"),
		RespondedAt:  600,
		Resolution:   types.ResolutionFixed,
		ResolvedAt:   700,
	}
	WriteIncident(db, incident)

	got := ReadIncident(db, 2)
	require.NotNil(t, got)
	require.Equal(t, incident, got)
	require.Nil(t, ReadIncident(db, 3))
}

func TestCountersDefaultAndRoundtrip(t *testing.T) {
	db := NewMemoryDatabase()

	require.Equal(t, uint64(params.FirstAgentID), ReadNextAgentID(db))
	require.Equal(t, uint64(params.FirstIncidentID), ReadNextIncidentID(db))

	WriteNextAgentID(db, 42)
	WriteNextIncidentID(db, 7)
	require.Equal(t, uint64(42), ReadNextAgentID(db))
	require.Equal(t, uint64(7), ReadNextIncidentID(db))
}

func TestApprovalsStorage(t *testing.T) {
	db := NewMemoryDatabase()

	approvals := map[common.Address]map[common.Address]bool{
		common.HexToAddress("0x01"): {
			common.HexToAddress("0x02"): true,
			common.HexToAddress("0x03"): true,
		},
		common.HexToAddress("0x04"): {
			common.HexToAddress("0x02"): true,
		},
	}
	WriteApprovals(db, approvals)

	got := ReadApprovals(db)
	require.Equal(t, approvals, got)
}

func TestSequenceStorage(t *testing.T) {
	db := NewMemoryDatabase()

	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")
	WriteRequesterSequence(db, a, 3)
	WriteRequesterSequence(db, b, 9)
	WriteRequesterSequence(db, a, 4)

	got := ReadAllRequesterSequences(db)
	require.Equal(t, map[common.Address]uint64{a: 4, b: 9}, got)
}

func TestReadAllAcrossFamilies(t *testing.T) {
	db := NewMemoryDatabase()

	for id := uint64(1); id <= 3; id++ {
		WriteAgent(db, &types.Agent{ID: id, Owner: common.HexToAddress("0x01"), Active: true})
		WriteIncident(db, &types.Incident{ID: id, AgentID: id, Reporter: common.HexToAddress("0x02")})
	}
	WriteValidation(db, &types.ValidationRequest{ID: common.HexToHash("0x01"), AgentID: 1})
	WriteValidation(db, &types.ValidationRequest{ID: common.HexToHash("0x02"), AgentID: 2})

	require.Len(t, ReadAllAgents(db), 3)
	require.Len(t, ReadAllIncidents(db), 3)
	require.Len(t, ReadAllValidations(db), 2)
}
