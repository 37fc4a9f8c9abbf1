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
package events

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sinkSchema = `
CREATE TABLE IF NOT EXISTS events (
	id              TEXT PRIMARY KEY,
	type            TEXT NOT NULL,
	agent           TEXT,
	timestamp       TEXT NOT NULL,
	execution_id    TEXT,
	swarm_id        TEXT,
	parent_swarm_id TEXT,
	data            TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_execution ON events(execution_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// SQLiteSink persists every event it receives. Delivery is best-effort:
// write failures are logged, never surfaced to the run.
type SQLiteSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSink opens (or creates) the database at path and ensures the
// schema exists. Pass ":memory:" for an ephemeral sink.
func NewSQLiteSink(path string, logger *zap.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	if _, err := db.Exec(sinkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create event store schema: %w", err)
	}
	return &SQLiteSink{db: db, logger: logger}, nil
}

// Store is the Subscriber function.
func (s *SQLiteSink) Store(e Event) {
	var data []byte
	if e.Data != nil {
		var err error
		data, err = json.Marshal(e.Data)
		if err != nil {
			s.logger.Warn("event data not serializable", zap.String("type", string(e.Type)), zap.Error(err))
			data = nil
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO events (id, type, agent, timestamp, execution_id, swarm_id, parent_swarm_id, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(e.Type), e.Agent, e.Timestamp,
		e.ExecutionID, e.SwarmID, e.ParentSwarmID, string(data),
	)
	if err != nil {
		s.logger.Warn("event store write failed", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// Query returns the events of one execution in timestamp order.
func (s *SQLiteSink) Query(executionID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT type, agent, timestamp, execution_id, swarm_id, parent_swarm_id, data
		 FROM events WHERE execution_id = ? ORDER BY timestamp`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var agent, data sql.NullString
		if err := rows.Scan(&e.Type, &agent, &e.Timestamp, &e.ExecutionID, &e.SwarmID, &e.ParentSwarmID, &data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Agent = agent.String
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("decode event data: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
