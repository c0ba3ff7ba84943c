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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/julienschmidt/httprouter"

	"github.com/trustnet/go-trustnet/core"
	"github.com/trustnet/go-trustnet/core/types"
)

// maxBodySize bounds a request body; the largest legal payload is a metadata
// batch of bounded keys and values.
const maxBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the registry error families onto HTTP statuses: input
// validation to 400, missing references to 404, authorization to 403, state
// machine conflicts to 409 and integrity violations to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, core.ErrAgentNotFound),
		errors.Is(err, core.ErrFeedbackNotFound),
		errors.Is(err, core.ErrRequestNotFound),
		errors.Is(err, core.ErrIncidentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrNotOwner),
		errors.Is(err, core.ErrNotAuthorized),
		errors.Is(err, core.ErrNotAuthority),
		errors.Is(err, core.ErrNotAuthor),
		errors.Is(err, core.ErrNotValidator),
		errors.Is(err, core.ErrNotRequester),
		errors.Is(err, core.ErrNotReporter),
		errors.Is(err, core.ErrSelfFeedback),
		errors.Is(err, core.ErrProofExpired),
		errors.Is(err, core.ErrInvalidProof):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrAgentActive),
		errors.Is(err, core.ErrAgentInactive),
		errors.Is(err, core.ErrFeedbackRevoked),
		errors.Is(err, core.ErrThreadFull),
		errors.Is(err, core.ErrRequestNotPending),
		errors.Is(err, core.ErrIncidentNotOpen),
		errors.Is(err, core.ErrIncidentNotResponded):
		status = http.StatusConflict
	case errors.Is(err, core.ErrRequestIDCollision):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

func paramUint64(ps httprouter.Params, name string) (uint64, bool) {
	return parseUint64(ps.ByName(name))
}

func parseUint64(raw string) (uint64, bool) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func badParam(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed " + name + " parameter"})
}

func paramAddress(ps httprouter.Params, name string) (common.Address, bool) {
	raw := ps.ByName(name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func parseSentiment(raw string) (types.Sentiment, bool) {
	switch strings.ToLower(raw) {
	case "positive":
		return types.SentimentPositive, true
	case "neutral":
		return types.SentimentNeutral, true
	case "negative":
		return types.SentimentNegative, true
	default:
		return 0, false
	}
}

func parseResolution(raw string) (types.Resolution, bool) {
	switch strings.ToLower(raw) {
	case "none":
		return types.ResolutionNone, true
	case "acknowledged":
		return types.ResolutionAcknowledged, true
	case "disputed":
		return types.ResolutionDisputed, true
	case "fixed":
		return types.ResolutionFixed, true
	case "not-a-bug":
		return types.ResolutionNotABug, true
	case "duplicate":
		return types.ResolutionDuplicate, true
	default:
		return 0, false
	}
}

//
// Identity handlers.
//

type metadataEntryDTO struct {
	Key   string        `json:"key"`
	Value hexutil.Bytes `json:"value"`
}

type registerRequest struct {
	Caller       common.Address     `json:"caller"`
	URI          string             `json:"uri"`
	MetadataHash common.Hash        `json:"metadataHash"`
	Metadata     []metadataEntryDTO `json:"metadata"`
}

type agentDTO struct {
	ID              uint64             `json:"id"`
	Owner           common.Address     `json:"owner"`
	URI             string             `json:"uri"`
	MetadataHash    common.Hash        `json:"metadataHash"`
	Metadata        []metadataEntryDTO `json:"metadata,omitempty"`
	Wallet          *common.Address    `json:"wallet,omitempty"`
	Active          bool               `json:"active"`
	DelegationNonce uint64             `json:"delegationNonce"`
	CreatedAt       uint64             `json:"createdAt"`
}

func newAgentDTO(agent *types.Agent) agentDTO {
	dto := agentDTO{
		ID:              agent.ID,
		Owner:           agent.Owner,
		URI:             agent.URI,
		MetadataHash:    agent.MetadataHash,
		Active:          agent.Active,
		DelegationNonce: agent.DelegationNonce,
		CreatedAt:       agent.CreatedAt,
	}
	for _, entry := range agent.MetadataEntries() {
		dto.Metadata = append(dto.Metadata, metadataEntryDTO{Key: entry.Key, Value: entry.Value})
	}
	if agent.Wallet != (common.Address{}) {
		wallet := agent.Wallet
		dto.Wallet = &wallet
	}
	return dto
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entries := make([]types.MetadataEntry, 0, len(req.Metadata))
	for _, entry := range req.Metadata {
		entries = append(entries, types.MetadataEntry{Key: entry.Key, Value: entry.Value})
	}
	var id uint64
	err := s.backbone.Exec(func() (err error) {
		id, err = s.backbone.Identity.RegisterWithMetadata(req.Caller, req.URI, req.MetadataHash, entries)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"agentId": id})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var (
		agent *types.Agent
		err   error
	)
	s.backbone.View(func() {
		agent, err = s.backbone.Identity.AgentByID(id)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAgentDTO(agent))
}

type updateURIRequest struct {
	Caller       common.Address `json:"caller"`
	URI          string         `json:"uri"`
	MetadataHash common.Hash    `json:"metadataHash"`
}

func (s *Server) handleUpdateURI(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req updateURIRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Identity.UpdateURI(req.Caller, id, req.URI, req.MetadataHash)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setMetadataRequest struct {
	Caller  common.Address     `json:"caller"`
	Entries []metadataEntryDTO `json:"entries"`
}

func (s *Server) handleSetMetadata(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req setMetadataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	keys := make([]string, 0, len(req.Entries))
	values := make([][]byte, 0, len(req.Entries))
	for _, entry := range req.Entries {
		keys = append(keys, entry.Key)
		values = append(values, entry.Value)
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Identity.SetMetadataBatch(req.Caller, id, keys, values)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var (
		value []byte
		err   error
	)
	s.backbone.View(func() {
		value, err = s.backbone.Identity.MetadataOf(id, ps.ByName("key"))
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]hexutil.Bytes{"value": value})
}

type setWalletRequest struct {
	Caller common.Address `json:"caller"`
	Wallet common.Address `json:"wallet"`
	Expiry uint64         `json:"expiry"`
	Proof  hexutil.Bytes  `json:"proof"`
}

func (s *Server) handleSetWallet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req setWalletRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Identity.SetWallet(req.Caller, id, req.Wallet, req.Expiry, req.Proof)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type callerRequest struct {
	Caller common.Address `json:"caller"`
}

func (s *Server) handleUnsetWallet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.callerAction(w, r, ps, s.backbone.Identity.UnsetWallet)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.callerAction(w, r, ps, s.backbone.Identity.Deactivate)
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.callerAction(w, r, ps, s.backbone.Identity.Reactivate)
}

func (s *Server) callerAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params, action func(common.Address, uint64) error) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.backbone.Exec(func() error { return action(req.Caller, id) }); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	Caller common.Address `json:"caller"`
	To     common.Address `json:"to"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Identity.Transfer(req.Caller, id, req.To)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setApprovalRequest struct {
	Caller   common.Address `json:"caller"`
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

func (s *Server) handleSetApproval(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req setApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Identity.SetApprovalForAll(req.Caller, req.Operator, req.Approved)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

//
// Reputation handlers.
//

type scoreDTO struct {
	Value    int64 `json:"value"`
	Decimals uint8 `json:"decimals"`
}

type submitFeedbackRequest struct {
	Caller    common.Address `json:"caller"`
	Content   string         `json:"content"`
	Sentiment string         `json:"sentiment"`
	Score     *scoreDTO      `json:"score"`
	Tag1      string         `json:"tag1"`
	Tag2      string         `json:"tag2"`
	FileURI   string         `json:"fileUri"`
	FileHash  common.Hash    `json:"fileHash"`
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req submitFeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sentiment, ok := parseSentiment(req.Sentiment)
	if !ok {
		writeError(w, core.ErrInvalidSentiment)
		return
	}
	var score *types.Score
	if req.Score != nil {
		score = &types.Score{Value: req.Score.Value, Decimals: req.Score.Decimals}
	}
	var index uint64
	err := s.backbone.Exec(func() (err error) {
		index, err = s.backbone.Reputation.Submit(req.Caller, agentID, req.Content, sentiment, score, req.Tag1, req.Tag2, req.FileURI, req.FileHash)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"index": index})
}

type feedbackDTO struct {
	Index     uint64                `json:"index"`
	Author    common.Address        `json:"author"`
	Content   string                `json:"content"`
	Sentiment string                `json:"sentiment"`
	Score     *scoreDTO             `json:"score,omitempty"`
	Tag1      string                `json:"tag1,omitempty"`
	Tag2      string                `json:"tag2,omitempty"`
	FileURI   string                `json:"fileUri,omitempty"`
	FileHash  common.Hash           `json:"fileHash"`
	CreatedAt uint64                `json:"createdAt"`
	Revoked   bool                  `json:"revoked"`
	Responses []feedbackResponseDTO `json:"responses,omitempty"`
}

type feedbackResponseDTO struct {
	Responder common.Address `json:"responder"`
	Content   string         `json:"content"`
	URI       string         `json:"uri,omitempty"`
	Hash      common.Hash    `json:"hash"`
	CreatedAt uint64         `json:"createdAt"`
}

func newFeedbackDTO(index uint64, fb *types.Feedback) feedbackDTO {
	dto := feedbackDTO{
		Index:     index,
		Author:    fb.Author,
		Content:   fb.Content,
		Sentiment: fb.Sentiment.String(),
		Tag1:      fb.Tag1,
		Tag2:      fb.Tag2,
		FileURI:   fb.FileURI,
		FileHash:  fb.FileHash,
		CreatedAt: fb.CreatedAt,
		Revoked:   fb.Revoked,
	}
	if fb.Score != nil {
		dto.Score = &scoreDTO{Value: fb.Score.Value, Decimals: fb.Score.Decimals}
	}
	for _, resp := range fb.Responses {
		dto.Responses = append(dto.Responses, feedbackResponseDTO{
			Responder: resp.Responder,
			Content:   resp.Content,
			URI:       resp.URI,
			Hash:      resp.Hash,
			CreatedAt: resp.CreatedAt,
		})
	}
	return dto
}

// feedbackFilterParams parses the shared author/tag query filters.
func feedbackFilterParams(r *http.Request) (authors []common.Address, tag1, tag2 string, ok bool) {
	q := r.URL.Query()
	for _, raw := range q["author"] {
		if !common.IsHexAddress(raw) {
			return nil, "", "", false
		}
		authors = append(authors, common.HexToAddress(raw))
	}
	return authors, q.Get("tag1"), q.Get("tag2"), true
}

func (s *Server) handleFeedbackIndices(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	authors, tag1, tag2, ok := feedbackFilterParams(r)
	if !ok {
		badParam(w, "author")
		return
	}
	includeRevoked := r.URL.Query().Get("includeRevoked") == "true"
	var (
		indices []uint64
		err     error
	)
	s.backbone.View(func() {
		indices, err = s.backbone.Reputation.Indices(agentID, authors, tag1, tag2, includeRevoked)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if indices == nil {
		indices = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"indices": indices})
}

func (s *Server) handleFeedbackSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	authors, tag1, tag2, ok := feedbackFilterParams(r)
	if !ok {
		badParam(w, "author")
		return
	}
	var (
		summary types.FeedbackSummary
		err     error
	)
	s.backbone.View(func() {
		summary, err = s.backbone.Reputation.Summary(agentID, authors, tag1, tag2)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFeedbackAuthors(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var (
		authors []common.Address
		err     error
	)
	s.backbone.View(func() {
		authors, err = s.backbone.Reputation.Authors(agentID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if authors == nil {
		authors = []common.Address{}
	}
	writeJSON(w, http.StatusOK, map[string][]common.Address{"authors": authors})
}

func (s *Server) handleFeedbackAt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	index, ok := paramUint64(ps, "index")
	if !ok {
		badParam(w, "index")
		return
	}
	var (
		fb  *types.Feedback
		err error
	)
	s.backbone.View(func() {
		fb, err = s.backbone.Reputation.FeedbackAt(agentID, index)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newFeedbackDTO(index, fb))
}

func (s *Server) handleRevokeFeedback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	index, ok := paramUint64(ps, "index")
	if !ok {
		badParam(w, "index")
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Reputation.Revoke(req.Caller, agentID, index)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type respondFeedbackRequest struct {
	Caller  common.Address `json:"caller"`
	Content string         `json:"content"`
	URI     string         `json:"uri"`
	Hash    common.Hash    `json:"hash"`
}

func (s *Server) handleRespondFeedback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	index, ok := paramUint64(ps, "index")
	if !ok {
		badParam(w, "index")
		return
	}
	var req respondFeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Reputation.Respond(req.Caller, agentID, index, req.Content, req.URI, req.Hash)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

//
// Validation handlers.
//

type requestValidationRequest struct {
	Caller      common.Address `json:"caller"`
	Validator   common.Address `json:"validator"`
	AgentID     uint64         `json:"agentId"`
	ContentHash common.Hash    `json:"contentHash"`
	URI         string         `json:"uri"`
}

func (s *Server) handleRequestValidation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req requestValidationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var id common.Hash
	err := s.backbone.Exec(func() (err error) {
		id, err = s.backbone.Validation.Request(req.Caller, req.Validator, req.AgentID, req.ContentHash, req.URI)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]common.Hash{"requestId": id})
}

type validationDTO struct {
	ID          common.Hash    `json:"id"`
	Requester   common.Address `json:"requester"`
	Validator   common.Address `json:"validator"`
	AgentID     uint64         `json:"agentId"`
	ContentHash common.Hash    `json:"contentHash"`
	URI         string         `json:"uri,omitempty"`
	CreatedAt   uint64         `json:"createdAt"`
	Status      string         `json:"status"`
	ResultURI   string         `json:"resultUri,omitempty"`
	ResultHash  common.Hash    `json:"resultHash"`
	Tag         string         `json:"tag,omitempty"`
	Outcome     uint8          `json:"outcome"`
	DecidedAt   uint64         `json:"decidedAt,omitempty"`
}

func newValidationDTO(req *types.ValidationRequest) validationDTO {
	return validationDTO{
		ID:          req.ID,
		Requester:   req.Requester,
		Validator:   req.Validator,
		AgentID:     req.AgentID,
		ContentHash: req.ContentHash,
		URI:         req.URI,
		CreatedAt:   req.CreatedAt,
		Status:      req.Status.String(),
		ResultURI:   req.ResultURI,
		ResultHash:  req.ResultHash,
		Tag:         req.Tag,
		Outcome:     req.Outcome,
		DecidedAt:   req.DecidedAt,
	}
}

func paramHash(ps httprouter.Params, name string) (common.Hash, bool) {
	raw := ps.ByName(name)
	if !strings.HasPrefix(raw, "0x") || len(raw) != 2+2*common.HashLength {
		return common.Hash{}, false
	}
	return common.HexToHash(raw), true
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramHash(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var (
		req *types.ValidationRequest
		err error
	)
	s.backbone.View(func() {
		req, err = s.backbone.Validation.Get(id)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newValidationDTO(req))
}

type decideValidationRequest struct {
	Caller     common.Address `json:"caller"`
	Outcome    *uint8         `json:"outcome"`
	ResultURI  string         `json:"resultUri"`
	ResultHash common.Hash    `json:"resultHash"`
	Tag        string         `json:"tag"`
}

func (s *Server) handleCompleteValidation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.decideValidation(w, r, ps, s.backbone.Validation.Complete)
}

func (s *Server) handleRejectValidation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.decideValidation(w, r, ps, s.backbone.Validation.Reject)
}

func (s *Server) decideValidation(w http.ResponseWriter, r *http.Request, ps httprouter.Params, decide func(common.Address, common.Hash, *uint8, string, common.Hash, string) error) {
	id, ok := paramHash(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req decideValidationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return decide(req.Caller, id, req.Outcome, req.ResultURI, req.ResultHash, req.Tag)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelValidation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramHash(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Validation.Cancel(req.Caller, id)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidationsByAgent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var (
		ids []common.Hash
		err error
	)
	s.backbone.View(func() {
		ids, err = s.backbone.Validation.ByAgent(agentID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []common.Hash{}
	}
	writeJSON(w, http.StatusOK, map[string][]common.Hash{"requestIds": ids})
}

func (s *Server) handleValidationsByValidator(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	addr, ok := paramAddress(ps, "addr")
	if !ok {
		badParam(w, "addr")
		return
	}
	var ids []common.Hash
	s.backbone.View(func() {
		ids = s.backbone.Validation.ByValidator(addr)
	})
	if ids == nil {
		ids = []common.Hash{}
	}
	writeJSON(w, http.StatusOK, map[string][]common.Hash{"requestIds": ids})
}

func (s *Server) handleValidationsByRequester(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	addr, ok := paramAddress(ps, "addr")
	if !ok {
		badParam(w, "addr")
		return
	}
	var ids []common.Hash
	s.backbone.View(func() {
		ids = s.backbone.Validation.ByRequester(addr)
	})
	if ids == nil {
		ids = []common.Hash{}
	}
	writeJSON(w, http.StatusOK, map[string][]common.Hash{"requestIds": ids})
}

func (s *Server) handleValidationSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	q := r.URL.Query()
	var validators []common.Address
	for _, raw := range q["validator"] {
		if !common.IsHexAddress(raw) {
			badParam(w, "validator")
			return
		}
		validators = append(validators, common.HexToAddress(raw))
	}
	var (
		summary types.ValidationSummary
		err     error
	)
	s.backbone.View(func() {
		summary, err = s.backbone.Validation.Summary(agentID, validators, q.Get("tag"))
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

//
// Incident handlers.
//

type reportIncidentRequest struct {
	Caller     common.Address `json:"caller"`
	AgentID    uint64         `json:"agentId"`
	ReportURI  string         `json:"reportUri"`
	ReportHash common.Hash    `json:"reportHash"`
	Category   string         `json:"category"`
}

func (s *Server) handleReportIncident(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req reportIncidentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var id uint64
	err := s.backbone.Exec(func() (err error) {
		id, err = s.backbone.Incident.Report(req.Caller, req.AgentID, req.ReportURI, req.ReportHash, req.Category)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"incidentId": id})
}

type incidentDTO struct {
	ID           uint64          `json:"id"`
	AgentID      uint64          `json:"agentId"`
	Reporter     common.Address  `json:"reporter"`
	ReportURI    string          `json:"reportUri,omitempty"`
	ReportHash   common.Hash     `json:"reportHash"`
	Category     string          `json:"category,omitempty"`
	CreatedAt    uint64          `json:"createdAt"`
	Status       string          `json:"status"`
	ResponseURI  string          `json:"responseUri,omitempty"`
	ResponseHash common.Hash     `json:"responseHash"`
	Responder    *common.Address `json:"responder,omitempty"`
	RespondedAt  uint64          `json:"respondedAt,omitempty"`
	Resolution   string          `json:"resolution"`
	ResolvedAt   uint64          `json:"resolvedAt,omitempty"`
}

func newIncidentDTO(incident *types.Incident) incidentDTO {
	dto := incidentDTO{
		ID:           incident.ID,
		AgentID:      incident.AgentID,
		Reporter:     incident.Reporter,
		ReportURI:    incident.ReportURI,
		ReportHash:   incident.ReportHash,
		Category:     incident.Category,
		CreatedAt:    incident.CreatedAt,
		Status:       incident.Status.String(),
		ResponseURI:  incident.ResponseURI,
		ResponseHash: incident.ResponseHash,
		RespondedAt:  incident.RespondedAt,
		Resolution:   incident.Resolution.String(),
		ResolvedAt:   incident.ResolvedAt,
	}
	if incident.Responder != (common.Address{}) {
		responder := incident.Responder
		dto.Responder = &responder
	}
	return dto
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var (
		incident *types.Incident
		err      error
	)
	s.backbone.View(func() {
		incident, err = s.backbone.Incident.Get(id)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncidentDTO(incident))
}

type respondIncidentRequest struct {
	Caller       common.Address `json:"caller"`
	ResponseURI  string         `json:"responseUri"`
	ResponseHash common.Hash    `json:"responseHash"`
}

func (s *Server) handleRespondIncident(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req respondIncidentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Incident.Respond(req.Caller, id, req.ResponseURI, req.ResponseHash)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resolveIncidentRequest struct {
	Caller     common.Address `json:"caller"`
	Resolution string         `json:"resolution"`
}

func (s *Server) handleResolveIncident(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var req resolveIncidentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resolution, ok := parseResolution(req.Resolution)
	if !ok {
		writeError(w, core.ErrInvalidResolution)
		return
	}
	err := s.backbone.Exec(func() error {
		return s.backbone.Incident.Resolve(req.Caller, id, resolution)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIncidentsByAgent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var (
		ids []uint64
		err error
	)
	s.backbone.View(func() {
		ids, err = s.backbone.Incident.ByAgent(agentID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"incidentIds": ids})
}

func (s *Server) handleIncidentsByReporter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	addr, ok := paramAddress(ps, "addr")
	if !ok {
		badParam(w, "addr")
		return
	}
	var ids []uint64
	s.backbone.View(func() {
		ids = s.backbone.Incident.ByReporter(addr)
	})
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"incidentIds": ids})
}

func (s *Server) handleIncidentSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID, ok := paramUint64(ps, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	var (
		summary types.IncidentSummary
		err     error
	)
	s.backbone.View(func() {
		summary, err = s.backbone.Incident.Summary(agentID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
