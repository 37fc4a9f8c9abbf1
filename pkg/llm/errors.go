// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a provider error for retry policy.
type Kind int

const (
	// KindNonRetryable covers 4xx responses other than the tool-history
	// case, and programming errors.
	KindNonRetryable Kind = iota

	// KindToolHistory is the specific 400 family recovered by orphan
	// tool-call pruning: the retry after pruning is free.
	KindToolHistory

	// KindRateLimited is 429.
	KindRateLimited

	// KindOverloaded is 529.
	KindOverloaded

	// KindServer is any other 5xx.
	KindServer

	// KindTransport is a network-level failure with no HTTP status.
	KindTransport
)

// toolHistoryPhrases are the 400 message fragments that indicate a
// malformed tool history rather than a bad request.
var toolHistoryPhrases = []string{
	"tool_use block must have corresponding tool_result",
	"tool_use_id not found",
	"must immediately follow",
}

// ProviderError is the single error type adapters surface. Status is 0
// for transport errors.
type ProviderError struct {
	Status   int
	Kind     Kind
	TypeName string
	Message  string
	Body     string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.TypeName, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.TypeName, e.Status, e.Message)
}

// Retryable reports whether the retry loop should attempt again.
// Tool-history errors are handled by pruning, not plain retry.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindOverloaded, KindServer, KindTransport:
		return true
	default:
		return false
	}
}

// Classify translates an HTTP status and response body into the taxonomy.
func Classify(status int, body string) *ProviderError {
	pe := &ProviderError{Status: status, Body: body, Message: extractMessage(body)}
	switch {
	case status == 400 && isToolHistoryBody(pe.Message) || status == 400 && isToolHistoryBody(body):
		pe.Kind = KindToolHistory
		pe.TypeName = "ToolHistoryError"
	case status == 429:
		pe.Kind = KindRateLimited
		pe.TypeName = "RateLimited"
	case status == 529:
		pe.Kind = KindOverloaded
		pe.TypeName = "Overloaded"
	case status >= 500:
		pe.Kind = KindServer
		pe.TypeName = "ServerError"
	default:
		pe.Kind = KindNonRetryable
		pe.TypeName = statusTypeName(status)
	}
	return pe
}

// ClassifyTransport wraps a network-level failure.
func ClassifyTransport(err error) *ProviderError {
	return &ProviderError{
		Kind:     KindTransport,
		TypeName: "TransportError",
		Message:  err.Error(),
	}
}

// IsToolHistoryError reports whether err is the recoverable 400 family.
func IsToolHistoryError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindToolHistory
}

// IsRetryable reports whether err warrants another attempt.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}

func isToolHistoryBody(s string) bool {
	low := strings.ToLower(s)
	for _, phrase := range toolHistoryPhrases {
		if strings.Contains(low, phrase) {
			return true
		}
	}
	return false
}

func statusTypeName(status int) string {
	switch status {
	case 400:
		return "BadRequest"
	case 401:
		return "Unauthorized"
	case 402:
		return "PaymentRequired"
	case 403:
		return "Forbidden"
	case 404:
		return "NotFound"
	case 422:
		return "UnprocessableEntity"
	default:
		return fmt.Sprintf("HTTPError%d", status)
	}
}

// extractMessage pulls the error message out of a JSON error body; the
// raw body when it is not the expected shape.
func extractMessage(body string) string {
	// Bodies look like {"type":"error","error":{"type":"...","message":"..."}}.
	const key = `"message":"`
	idx := strings.Index(body, key)
	if idx < 0 {
		return strings.TrimSpace(body)
	}
	rest := body[idx+len(key):]
	var b strings.Builder
	for i := 0; i < len(rest); i++ {
		if rest[i] == '\\' && i+1 < len(rest) {
			b.WriteByte(rest[i+1])
			i++
			continue
		}
		if rest[i] == '"' {
			return b.String()
		}
		b.WriteByte(rest[i])
	}
	return strings.TrimSpace(body)
}
