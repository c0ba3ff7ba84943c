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

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/trustnet/go-trustnet/core/state"
	"github.com/trustnet/go-trustnet/core/types"
	"github.com/trustnet/go-trustnet/params"
)

// ReputationRegistry keeps the append-only feedback ledger per agent. It
// consults the identity registry only through the read-only IdentityReader
// capability.
type ReputationRegistry struct {
	state    *state.StateDB
	identity IdentityReader
	feed     event.Feed
	now      func() uint64
}

// NewReputationRegistry creates the reputation registry over the given state.
func NewReputationRegistry(st *state.StateDB, identity IdentityReader) *ReputationRegistry {
	return &ReputationRegistry{
		state:    st,
		identity: identity,
		now:      func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SubscribeEvents delivers this registry's notifications to ch.
func (r *ReputationRegistry) SubscribeEvents(ch chan<- types.Notification) event.Subscription {
	return r.feed.Subscribe(ch)
}

func (r *ReputationRegistry) publish() {
	for _, ev := range r.state.PullEvents() {
		r.feed.Send(types.Notification{Event: ev})
	}
}

// checkNotSelf rejects feedback from any address the agent itself controls:
// the current owner and the currently delegated wallet are both checked.
func (r *ReputationRegistry) checkNotSelf(agentID uint64, author common.Address) error {
	owner, err := r.identity.OwnerOf(agentID)
	if err != nil {
		return err
	}
	wallet, err := r.identity.WalletOf(agentID)
	if err != nil {
		return err
	}
	if author == owner || (wallet != (common.Address{}) && author == wallet) {
		return ErrSelfFeedback
	}
	return nil
}

// Submit appends one feedback record and returns its index. The author must
// not be the agent's owner or delegated wallet; sentiment is mandatory, the
// numeric score, tags and file reference are optional.
func (r *ReputationRegistry) Submit(author common.Address, agentID uint64, content string, sentiment types.Sentiment, score *types.Score, tag1, tag2, fileURI string, fileHash common.Hash) (uint64, error) {
	if author == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if !r.identity.Exists(agentID) {
		return 0, ErrAgentNotFound
	}
	if !sentiment.Valid() {
		return 0, ErrInvalidSentiment
	}
	if err := checkText(content); err != nil {
		return 0, err
	}
	if err := checkTag(tag1); err != nil {
		return 0, err
	}
	if err := checkTag(tag2); err != nil {
		return 0, err
	}
	if err := checkURI(fileURI); err != nil {
		return 0, err
	}
	if err := r.checkNotSelf(agentID, author); err != nil {
		return 0, err
	}

	fb := &types.Feedback{
		Author:    author,
		Content:   content,
		Sentiment: sentiment,
		Tag1:      tag1,
		Tag2:      tag2,
		FileURI:   fileURI,
		FileHash:  fileHash,
		CreatedAt: r.now(),
	}
	if score != nil {
		s := *score
		fb.Score = &s
	}
	index := r.state.AppendFeedback(agentID, fb)
	r.state.AddEvent(types.FeedbackSubmitted{
		AgentID:   agentID,
		Index:     index,
		Author:    author,
		Sentiment: sentiment,
		Score:     fb.Score,
		Tag1:      tag1,
		Tag2:      tag2,
	})
	r.publish()
	return index, nil
}

// Revoke marks the author's own feedback as revoked. Revocation is one-way;
// the slot is kept and later submissions are unaffected.
func (r *ReputationRegistry) Revoke(caller common.Address, agentID, index uint64) error {
	if !r.identity.Exists(agentID) {
		return ErrAgentNotFound
	}
	fb := r.state.GetFeedback(agentID, index)
	if fb == nil {
		return ErrFeedbackNotFound
	}
	if fb.Author != caller {
		return ErrNotAuthor
	}
	if fb.Revoked {
		return ErrFeedbackRevoked
	}
	r.state.RevokeFeedback(agentID, index)
	r.state.AddEvent(types.FeedbackRevoked{AgentID: agentID, Index: index, Author: caller})
	r.publish()
	return nil
}

// Respond appends an entry to a feedback item's response thread. Only the
// agent's current owner or delegated wallet may respond; the thread is
// bounded and closes once the underlying feedback is revoked.
func (r *ReputationRegistry) Respond(caller common.Address, agentID, index uint64, content, uri string, hash common.Hash) error {
	if err := checkText(content); err != nil {
		return err
	}
	if err := checkURI(uri); err != nil {
		return err
	}
	authority, err := r.identity.IsAuthority(agentID, caller)
	if err != nil {
		return err
	}
	if !authority {
		return ErrNotAuthority
	}
	fb := r.state.GetFeedback(agentID, index)
	if fb == nil {
		return ErrFeedbackNotFound
	}
	if fb.Revoked {
		return ErrFeedbackRevoked
	}
	if len(fb.Responses) >= params.MaxFeedbackResponses {
		return ErrThreadFull
	}
	r.state.AppendFeedbackResponse(agentID, index, types.FeedbackResponse{
		Responder: caller,
		Content:   content,
		URI:       uri,
		Hash:      hash,
		CreatedAt: r.now(),
	})
	r.state.AddEvent(types.FeedbackResponded{
		AgentID:   agentID,
		Index:     index,
		Responder: caller,
		Thread:    uint64(len(fb.Responses)),
	})
	r.publish()
	return nil
}

// feedbackFilter matches records against an optional author set and up to
// two positional tags.
type feedbackFilter struct {
	authors mapset.Set // nil means any author
	tag1    string
	tag2    string
}

func newFeedbackFilter(authors []common.Address, tag1, tag2 string) feedbackFilter {
	f := feedbackFilter{tag1: tag1, tag2: tag2}
	if len(authors) > 0 {
		f.authors = mapset.NewSet()
		for _, author := range authors {
			f.authors.Add(author)
		}
	}
	return f
}

func (f feedbackFilter) match(fb *types.Feedback) bool {
	if f.authors != nil && !f.authors.Contains(fb.Author) {
		return false
	}
	if f.tag1 != "" && fb.Tag1 != f.tag1 {
		return false
	}
	if f.tag2 != "" && fb.Tag2 != f.tag2 {
		return false
	}
	return true
}

// Summary aggregates the agent's feedback, optionally filtered by a set of
// authors and/or up to two tags. Revoked records are tallied but excluded
// from the sentiment buckets and the score aggregate.
func (r *ReputationRegistry) Summary(agentID uint64, authors []common.Address, tag1, tag2 string) (types.FeedbackSummary, error) {
	if !r.identity.Exists(agentID) {
		return types.FeedbackSummary{}, ErrAgentNotFound
	}
	filter := newFeedbackFilter(authors, tag1, tag2)

	var summary types.FeedbackSummary
	for _, fb := range r.state.FeedbackList(agentID) {
		if !filter.match(fb) {
			continue
		}
		summary.Total++
		if fb.Revoked {
			summary.Revoked++
			continue
		}
		summary.Active++
		switch fb.Sentiment {
		case types.SentimentPositive:
			summary.Positive++
		case types.SentimentNeutral:
			summary.Neutral++
		case types.SentimentNegative:
			summary.Negative++
		}
		if fb.Score != nil {
			summary.ScoreSum += fb.Score.Value
			summary.ScoreCount++
		}
	}
	return summary, nil
}

// Indices returns the feedback indices matching the same filters Summary
// accepts. Revoked records are included only when includeRevoked is set.
func (r *ReputationRegistry) Indices(agentID uint64, authors []common.Address, tag1, tag2 string, includeRevoked bool) ([]uint64, error) {
	if !r.identity.Exists(agentID) {
		return nil, ErrAgentNotFound
	}
	filter := newFeedbackFilter(authors, tag1, tag2)

	var indices []uint64
	for i, fb := range r.state.FeedbackList(agentID) {
		if !filter.match(fb) {
			continue
		}
		if fb.Revoked && !includeRevoked {
			continue
		}
		indices = append(indices, uint64(i))
	}
	return indices, nil
}

// Authors returns the distinct addresses that ever submitted feedback for
// the agent, in first-submission order.
func (r *ReputationRegistry) Authors(agentID uint64) ([]common.Address, error) {
	if !r.identity.Exists(agentID) {
		return nil, ErrAgentNotFound
	}
	return append([]common.Address(nil), r.state.Authors(agentID)...), nil
}

// FeedbackAt returns a copy of one feedback record.
func (r *ReputationRegistry) FeedbackAt(agentID, index uint64) (*types.Feedback, error) {
	if !r.identity.Exists(agentID) {
		return nil, ErrAgentNotFound
	}
	fb := r.state.GetFeedback(agentID, index)
	if fb == nil {
		return nil, ErrFeedbackNotFound
	}
	return fb.Copy(), nil
}

// FeedbackCount returns the total number of records, revoked included.
func (r *ReputationRegistry) FeedbackCount(agentID uint64) (uint64, error) {
	if !r.identity.Exists(agentID) {
		return 0, ErrAgentNotFound
	}
	return uint64(len(r.state.FeedbackList(agentID))), nil
}
