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

package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Sentiment is the tamper-resistant three-bucket feedback classification. It
// is stored independently of the optional numeric score: an unscoped numeric
// average is manipulable by a few large submissions, the sentiment tally is
// not.
type Sentiment uint8

const (
	SentimentPositive Sentiment = iota
	SentimentNeutral
	SentimentNegative
)

// Valid reports whether s is one of the three defined buckets.
func (s Sentiment) Valid() bool {
	return s <= SentimentNegative
}

func (s Sentiment) String() string {
	switch s {
	case SentimentPositive:
		return "positive"
	case SentimentNeutral:
		return "neutral"
	case SentimentNegative:
		return "negative"
	default:
		return "unknown"
	}
}

// Score is an optional signed numeric feedback signal with an explicit
// decimal scale: the effective value is Value / 10^Decimals.
type Score struct {
	Value    int64
	Decimals uint8
}

// FeedbackResponse is one entry of a feedback item's bounded response thread.
type FeedbackResponse struct {
	Responder common.Address
	Content   string
	URI       string
	Hash      common.Hash
	CreatedAt uint64
}

// Feedback is one append-only reputation record. Records are never deleted;
// revocation flips a one-way flag and keeps the slot.
type Feedback struct {
	Author    common.Address
	Content   string
	Sentiment Sentiment

	// Score is nil when the author supplied no numeric signal.
	Score *Score

	Tag1 string
	Tag2 string

	// FileURI/FileHash reference off-chain supporting material.
	FileURI  string
	FileHash common.Hash

	CreatedAt uint64
	Revoked   bool
	Responses []FeedbackResponse
}

// Copy returns a deep copy of the feedback record.
func (f *Feedback) Copy() *Feedback {
	cpy := *f
	if f.Score != nil {
		s := *f.Score
		cpy.Score = &s
	}
	cpy.Responses = append([]FeedbackResponse(nil), f.Responses...)
	return &cpy
}

// FeedbackSummary aggregates one agent's feedback under an optional filter.
// Sentiment tallies and the numeric-score aggregate are reported side by
// side; consumers wanting a quantitative signal divide ScoreSum by
// ScoreCount at their chosen scale.
type FeedbackSummary struct {
	Positive uint64 `json:"positive"`
	Neutral  uint64 `json:"neutral"`
	Negative uint64 `json:"negative"`
	Active   uint64 `json:"active"`
	Revoked  uint64 `json:"revoked"`
	Total    uint64 `json:"total"`

	ScoreSum   int64  `json:"scoreSum"`
	ScoreCount uint64 `json:"scoreCount"`
}
