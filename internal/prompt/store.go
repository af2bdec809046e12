// Copyright 2025 Prompt Architect Project
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

package prompt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store persists instruction template overrides. Operators can tune the
// imitate template without redeploying; readers fall back to the built-in
// template on any miss or error, so the store is never on the critical path.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (or creates) the template database at dbPath.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open template database: %w", err)
	}

	store := &Store{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize template schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the underlying database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS templates (
			name TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create templates table: %w", err)
	}
	return nil
}

// Get returns the stored template body for name. The second return value is
// false when no override exists or the read failed.
func (s *Store) Get(name string) (string, bool) {
	var body string
	err := s.db.QueryRow("SELECT body FROM templates WHERE name = ?", name).Scan(&body)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to read template override",
				zap.String("template_name", name),
				zap.Error(err),
			)
		}
		return "", false
	}
	return body, true
}

// Put stores or replaces a template override.
func (s *Store) Put(name, body string) error {
	if name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if body == "" {
		return fmt.Errorf("template body cannot be empty")
	}

	_, err := s.db.Exec(
		"INSERT INTO templates (name, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP",
		name, body,
	)
	if err != nil {
		return fmt.Errorf("failed to store template: %w", err)
	}

	s.logger.Info("Template override stored", zap.String("template_name", name))
	return nil
}

// ImitateTemplate resolves the imitate instruction body, preferring a store
// override. A nil store yields the built-in template.
func ImitateTemplate(store *Store) string {
	if store != nil {
		if body, ok := store.Get(ImitateTemplateName); ok {
			return body
		}
	}
	return DefaultImitateTemplate
}
