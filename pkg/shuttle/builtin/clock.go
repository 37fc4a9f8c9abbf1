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
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/teradata-labs/weave/pkg/shuttle"
)

// ClockTool reports the current date and time, optionally in a named
// IANA timezone.
type ClockTool struct {
	// now is replaceable for tests.
	now func() time.Time
}

func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (t *ClockTool) Name() string { return "Clock" }

func (t *ClockTool) Description() string {
	return "Get the current date and time. Optionally pass an IANA timezone name such as America/New_York."
}

func (t *ClockTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Clock parameters", map[string]*shuttle.JSONSchema{
		"timezone": shuttle.NewStringSchema("IANA timezone name (defaults to UTC)"),
	}, nil)
}

func (t *ClockTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	loc := time.UTC
	if tz, ok := params["timezone"].(string); ok && tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return shuttle.NewErrorResult("INVALID_TIMEZONE", fmt.Sprintf("unknown timezone %q", tz)), nil
		}
	}
	return shuttle.NewResult(t.now().In(loc).Format("Monday, January 2, 2006 15:04:05 MST")), nil
}
