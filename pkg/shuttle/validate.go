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
package shuttle

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateParams checks params against the tool's declared schema.
// Missing required parameters produce a precise "missing required
// parameter" message; other violations are reported from full JSON
// Schema validation.
func ValidateParams(tool Tool, params map[string]interface{}) error {
	schema := tool.InputSchema()
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	var missing []string
	for _, req := range schema.Required {
		if _, ok := params[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		if len(missing) == 1 {
			return fmt.Errorf("missing required parameter %q for tool %s", missing[0], tool.Name())
		}
		return fmt.Errorf("missing required parameters %s for tool %s", strings.Join(missing, ", "), tool.Name())
	}

	raw, err := schema.ToJSON()
	if err != nil {
		return fmt.Errorf("tool %s has an invalid schema: %w", tool.Name(), err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(raw),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("validate parameters for tool %s: %w", tool.Name(), err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid parameters for tool %s: %s", tool.Name(), strings.Join(msgs, "; "))
	}
	return nil
}
