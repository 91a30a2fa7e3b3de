// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package utils provides small shared helpers.
package utils

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tolgaakin/weft/pkg/message"
)

// TokenCounter counts prompt tokens for a model using tiktoken encodings.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for the given model, falling back to
// the cl100k_base encoding for models tiktoken does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()
	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages counts tokens in a message list, including the per-message
// role overhead of chat formats.
func (tc *TokenCounter) CountMessages(messages []message.Message) int {
	const tokensPerMessage = 3

	total := 3 // reply priming
	for _, m := range messages {
		total += tokensPerMessage
		total += len(tc.encoding.Encode(string(m.Role()), nil, nil))
		total += len(tc.encoding.Encode(m.Text(), nil, nil))
	}
	return total
}

// Model returns the model this counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}

// EstimateTokens gives a rough 4-chars-per-token estimate for callers that
// have no counter at hand.
func EstimateTokens(text string) int {
	return len(text) / 4
}
