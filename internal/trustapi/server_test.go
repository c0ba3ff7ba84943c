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

package trustapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/trustnet/go-trustnet/core"
	"github.com/trustnet/go-trustnet/core/types"
)

var (
	apiOwner  = "0x1111111111111111111111111111111111111111"
	apiOther  = "0x3333333333333333333333333333333333333333"
	apiThird  = "0x4444444444444444444444444444444444444444"
	apiFourth = "0x5555555555555555555555555555555555555555"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	backbone := core.NewBackbone(nil, "testnet")
	srv := NewServer(backbone, Config{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	fields := make(map[string]json.RawMessage)
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&fields))
	}
	return resp, fields
}

func registerAgent(t *testing.T, ts *httptest.Server, owner string) uint64 {
	t.Helper()
	resp, fields := doJSON(t, ts, http.MethodPost, "/v1/agents",
		fmt.Sprintf(`{"caller":%q,"uri":"ipfs://agent"}`, owner))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var id uint64
	require.NoError(t, json.Unmarshal(fields["agentId"], &id))
	return id
}

func TestRegisterAndFetchAgent(t *testing.T) {
	ts := newTestServer(t)

	id := registerAgent(t, ts, apiOwner)
	resp, fields := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/v1/agents/%d", id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var owner common.Address
	require.NoError(t, json.Unmarshal(fields["owner"], &owner))
	require.Equal(t, common.HexToAddress(apiOwner), owner)
	var active bool
	require.NoError(t, json.Unmarshal(fields["active"], &active))
	require.True(t, active)

	// Unknown agents map to 404, malformed ids to 400.
	resp, _ = doJSON(t, ts, http.MethodGet, "/v1/agents/99", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodGet, "/v1/agents/bogus", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterRejectsZeroCaller(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/agents",
		`{"caller":"0x0000000000000000000000000000000000000000"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/agents", `{"caller":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/agents", `{"caller":"0x01","bogus":true}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeedbackFlow(t *testing.T) {
	ts := newTestServer(t)
	id := registerAgent(t, ts, apiOwner)
	base := fmt.Sprintf("/v1/agents/%d", id)

	// Self feedback is forbidden.
	resp, _ := doJSON(t, ts, http.MethodPost, base+"/feedback",
		fmt.Sprintf(`{"caller":%q,"sentiment":"positive"}`, apiOwner))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Unknown sentiment is a validation error.
	resp, _ = doJSON(t, ts, http.MethodPost, base+"/feedback",
		fmt.Sprintf(`{"caller":%q,"sentiment":"meh"}`, apiOther))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, fields := doJSON(t, ts, http.MethodPost, base+"/feedback",
		fmt.Sprintf(`{"caller":%q,"content":"solid","sentiment":"positive","score":{"value":90,"decimals":0},"tag1":"translation"}`, apiOther))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var index uint64
	require.NoError(t, json.Unmarshal(fields["index"], &index))

	doJSON(t, ts, http.MethodPost, base+"/feedback",
		fmt.Sprintf(`{"caller":%q,"sentiment":"negative"}`, apiThird))

	// Summary over both records.
	resp, fields = doJSON(t, ts, http.MethodGet, base+"/feedback/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "2", string(fields["total"]))
	require.JSONEq(t, "1", string(fields["positive"]))
	require.JSONEq(t, "90", string(fields["scoreSum"]))

	// Tag filter narrows it down.
	resp, fields = doJSON(t, ts, http.MethodGet, base+"/feedback/summary?tag1=translation", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "1", string(fields["total"]))

	// Owner responds, author revokes.
	resp, _ = doJSON(t, ts, http.MethodPost, fmt.Sprintf("%s/feedback/items/%d/responses", base, index),
		fmt.Sprintf(`{"caller":%q,"content":"thanks"}`, apiOwner))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, fmt.Sprintf("%s/feedback/items/%d/revoke", base, index),
		fmt.Sprintf(`{"caller":%q}`, apiOther))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Double revocation is a state conflict.
	resp, _ = doJSON(t, ts, http.MethodPost, fmt.Sprintf("%s/feedback/items/%d/revoke", base, index),
		fmt.Sprintf(`{"caller":%q}`, apiOther))
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, fields = doJSON(t, ts, http.MethodGet, fmt.Sprintf("%s/feedback/items/%d", base, index), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "true", string(fields["revoked"]))
}

func TestValidationFlow(t *testing.T) {
	ts := newTestServer(t)
	id := registerAgent(t, ts, apiOwner)

	resp, fields := doJSON(t, ts, http.MethodPost, "/v1/validations",
		fmt.Sprintf(`{"caller":%q,"validator":%q,"agentId":%d,"uri":"ipfs://req"}`, apiThird, apiFourth, id))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var reqID common.Hash
	require.NoError(t, json.Unmarshal(fields["requestId"], &reqID))

	// Only the named validator decides.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/validations/"+reqID.Hex()+"/complete",
		fmt.Sprintf(`{"caller":%q}`, apiThird))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/validations/"+reqID.Hex()+"/complete",
		fmt.Sprintf(`{"caller":%q,"tag":"benchmark"}`, apiFourth))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, fields = doJSON(t, ts, http.MethodGet, "/v1/validations/"+reqID.Hex(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `"completed"`, string(fields["status"]))
	require.JSONEq(t, "100", string(fields["outcome"]))

	// Deciding again is a state conflict.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/validations/"+reqID.Hex()+"/reject",
		fmt.Sprintf(`{"caller":%q}`, apiFourth))
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, fields = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/v1/agents/%d/validations/summary", id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "1", string(fields["completed"]))
	require.JSONEq(t, "100", string(fields["averageOutcome"]))
}

func TestAddressIndexRoutes(t *testing.T) {
	ts := newTestServer(t)
	id := registerAgent(t, ts, apiOwner)

	resp, fields := doJSON(t, ts, http.MethodPost, "/v1/validations",
		fmt.Sprintf(`{"caller":%q,"validator":%q,"agentId":%d}`, apiThird, apiFourth, id))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var first common.Hash
	require.NoError(t, json.Unmarshal(fields["requestId"], &first))

	resp, fields = doJSON(t, ts, http.MethodPost, "/v1/validations",
		fmt.Sprintf(`{"caller":%q,"validator":%q,"agentId":%d}`, apiThird, apiOther, id))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var second common.Hash
	require.NoError(t, json.Unmarshal(fields["requestId"], &second))

	resp, fields = doJSON(t, ts, http.MethodPost, "/v1/incidents",
		fmt.Sprintf(`{"caller":%q,"agentId":%d}`, apiThird, id))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var incidentID uint64
	require.NoError(t, json.Unmarshal(fields["incidentId"], &incidentID))

	resp, fields = doJSON(t, ts, http.MethodGet, "/v1/validators/"+apiFourth+"/validations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ids []common.Hash
	require.NoError(t, json.Unmarshal(fields["requestIds"], &ids))
	require.Equal(t, []common.Hash{first}, ids)

	resp, fields = doJSON(t, ts, http.MethodGet, "/v1/requesters/"+apiThird+"/validations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(fields["requestIds"], &ids))
	require.Equal(t, []common.Hash{first, second}, ids)

	resp, fields = doJSON(t, ts, http.MethodGet, "/v1/reporters/"+apiThird+"/incidents", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var incidentIDs []uint64
	require.NoError(t, json.Unmarshal(fields["incidentIds"], &incidentIDs))
	require.Equal(t, []uint64{incidentID}, incidentIDs)

	// Unindexed addresses come back as empty lists, bad addresses as 400.
	resp, fields = doJSON(t, ts, http.MethodGet, "/v1/reporters/"+apiFourth+"/incidents", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "[]", string(fields["incidentIds"]))
	resp, _ = doJSON(t, ts, http.MethodGet, "/v1/validators/bogus/validations", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIncidentFlow(t *testing.T) {
	ts := newTestServer(t)
	id := registerAgent(t, ts, apiOwner)

	resp, fields := doJSON(t, ts, http.MethodPost, "/v1/incidents",
		fmt.Sprintf(`{"caller":%q,"agentId":%d,"reportUri":"ipfs://report","category":"safety"}`, apiOther, id))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var incidentID uint64
	require.NoError(t, json.Unmarshal(fields["incidentId"], &incidentID))

	base := fmt.Sprintf("/v1/incidents/%d", incidentID)

	// Resolve before respond is a state conflict.
	resp, _ = doJSON(t, ts, http.MethodPost, base+"/resolve",
		fmt.Sprintf(`{"caller":%q,"resolution":"fixed"}`, apiOther))
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, base+"/response",
		fmt.Sprintf(`{"caller":%q,"responseUri":"ipfs://resp"}`, apiOwner))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Unknown resolution vocabulary.
	resp, _ = doJSON(t, ts, http.MethodPost, base+"/resolve",
		fmt.Sprintf(`{"caller":%q,"resolution":"maybe"}`, apiOther))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, base+"/resolve",
		fmt.Sprintf(`{"caller":%q,"resolution":"not-a-bug"}`, apiOther))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, fields = doJSON(t, ts, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `"resolved"`, string(fields["status"]))
	require.JSONEq(t, `"not-a-bug"`, string(fields["resolution"]))
}

func TestTransferAndWalletEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := registerAgent(t, ts, apiOwner)
	base := fmt.Sprintf("/v1/agents/%d", id)

	// A stranger cannot transfer.
	resp, _ := doJSON(t, ts, http.MethodPost, base+"/transfer",
		fmt.Sprintf(`{"caller":%q,"to":%q}`, apiOther, apiThird))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, base+"/transfer",
		fmt.Sprintf(`{"caller":%q,"to":%q}`, apiOwner, apiThird))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// A garbage delegation proof is rejected.
	resp, _ = doJSON(t, ts, http.MethodPost, base+"/wallet",
		fmt.Sprintf(`{"caller":%q,"wallet":%q,"expiry":99999999999,"proof":"0x00"}`, apiThird, apiFourth))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, base+"/deactivate", fmt.Sprintf(`{"caller":%q}`, apiThird))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodPost, base+"/deactivate", fmt.Sprintf(`{"caller":%q}`, apiThird))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handler subscribes after the handshake returns; give it a moment
	// before producing the event.
	time.Sleep(100 * time.Millisecond)

	id := registerAgent(t, ts, apiOwner)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "AgentRegistered", ev.Event)

	var data struct {
		AgentID uint64 `json:"AgentID"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	require.Equal(t, id, data.AgentID)
}

func TestEventStreamPumpDropsLaggards(t *testing.T) {
	in := make(chan types.Notification)
	out := make(chan types.Notification, 4)
	done := make(chan struct{})
	defer close(done)

	overflow := pumpEvents(in, out, done)

	// Fill the consumer buffer with nobody draining it; the pump must keep
	// accepting from the feed side until the moment it signals overflow.
	for i := 0; i < 5; i++ {
		select {
		case in <- types.Notification{Event: types.AgentRegistered{AgentID: uint64(i)}}:
		case <-time.After(time.Second):
			t.Fatal("pump stopped accepting events")
		}
	}
	select {
	case <-overflow:
	case <-time.After(time.Second):
		t.Fatal("overflow never signalled")
	}
}
