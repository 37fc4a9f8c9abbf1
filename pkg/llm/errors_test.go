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
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		wantKind  Kind
		wantName  string
		retryable bool
	}{
		{400, `{"error":{"message":"tool_use block must have corresponding tool_result"}}`, KindToolHistory, "ToolHistoryError", false},
		{400, `{"error":{"message":"tool_use_id not found: toolu_xyz"}}`, KindToolHistory, "ToolHistoryError", false},
		{400, `{"error":{"message":"tool_result blocks must immediately follow tool_use"}}`, KindToolHistory, "ToolHistoryError", false},
		{400, `{"error":{"message":"max_tokens is too large"}}`, KindNonRetryable, "BadRequest", false},
		{401, `{"error":{"message":"Invalid API key"}}`, KindNonRetryable, "Unauthorized", false},
		{402, "", KindNonRetryable, "PaymentRequired", false},
		{403, "", KindNonRetryable, "Forbidden", false},
		{422, "", KindNonRetryable, "UnprocessableEntity", false},
		{429, "", KindRateLimited, "RateLimited", true},
		{500, "", KindServer, "ServerError", true},
		{503, "", KindServer, "ServerError", true},
		{529, "", KindOverloaded, "Overloaded", true},
	}
	for _, tt := range tests {
		pe := Classify(tt.status, tt.body)
		if pe.Kind != tt.wantKind {
			t.Errorf("status %d: kind = %v, want %v", tt.status, pe.Kind, tt.wantKind)
		}
		if pe.TypeName != tt.wantName {
			t.Errorf("status %d: type = %q, want %q", tt.status, pe.TypeName, tt.wantName)
		}
		if pe.Retryable() != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, pe.Retryable(), tt.retryable)
		}
	}
}

func TestClassify_ToolHistoryCaseInsensitive(t *testing.T) {
	pe := Classify(400, `{"error":{"message":"Tool_use block must have corresponding Tool_result"}}`)
	if pe.Kind != KindToolHistory {
		t.Error("tool-history detection should be case-insensitive")
	}
}

func TestClassify_MessageExtraction(t *testing.T) {
	pe := Classify(401, `{"type":"error","error":{"type":"authentication_error","message":"Invalid API key"}}`)
	if pe.Message != "Invalid API key" {
		t.Errorf("message = %q", pe.Message)
	}
	if !strings.Contains(pe.Error(), "401") || !strings.Contains(pe.Error(), "Unauthorized") {
		t.Errorf("Error() should carry status and type: %q", pe.Error())
	}
}

func TestClassifyTransport(t *testing.T) {
	pe := ClassifyTransport(errors.New("connection refused"))
	if pe.Kind != KindTransport || !pe.Retryable() {
		t.Errorf("transport errors must be retryable: %+v", pe)
	}
	if pe.Status != 0 {
		t.Errorf("transport errors have no status, got %d", pe.Status)
	}
}

func TestIsToolHistoryError(t *testing.T) {
	wrapped := errorsJoin(Classify(400, "tool_use_id not found"))
	if !IsToolHistoryError(wrapped) {
		t.Error("IsToolHistoryError should see through wrapping")
	}
	if IsToolHistoryError(errors.New("plain")) {
		t.Error("plain errors are not tool-history errors")
	}
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("call failed"), err)
}
