package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS columns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY(project_id) REFERENCES projects(id)
	);`,
	`CREATE TABLE IF NOT EXISTS sprints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'planning' CHECK (status IN ('planning', 'active', 'completed')),
		goal TEXT,
		start_date DATETIME,
		end_date DATETIME,
		budget REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME,
		completed_by_id INTEGER,
		completed_ticket_count INTEGER,
		incomplete_ticket_count INTEGER,
		completed_story_points REAL,
		incomplete_story_points REAL,
		FOREIGN KEY(project_id) REFERENCES projects(id)
	);`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		sprint_id INTEGER,
		column_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		story_points REAL,
		is_carried_over INTEGER NOT NULL DEFAULT 0,
		carried_from_sprint_id INTEGER,
		carried_over_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(project_id) REFERENCES projects(id),
		FOREIGN KEY(sprint_id) REFERENCES sprints(id),
		FOREIGN KEY(column_id) REFERENCES columns(id),
		FOREIGN KEY(carried_from_sprint_id) REFERENCES sprints(id)
	);`,
	`CREATE TABLE IF NOT EXISTS ticket_sprint_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL,
		sprint_id INTEGER NOT NULL,
		entry_type TEXT NOT NULL CHECK (entry_type IN ('added', 'carried_over')),
		carried_from_sprint_id INTEGER,
		added_at DATETIME NOT NULL,
		removed_at DATETIME,
		exit_status TEXT CHECK (exit_status IS NULL OR exit_status IN ('completed', 'carried_over', 'removed')),
		FOREIGN KEY(ticket_id) REFERENCES tickets(id),
		FOREIGN KEY(sprint_id) REFERENCES sprints(id),
		FOREIGN KEY(carried_from_sprint_id) REFERENCES sprints(id)
	);`,
}

// Indexes, including the two partial unique indexes that back the engine's
// invariants at the storage layer.
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sprints_one_active ON sprints(project_id) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_history_one_open ON ticket_sprint_history(ticket_id, sprint_id) WHERE exit_status IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_sprints_project ON sprints(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_sprint ON tickets(sprint_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_project ON tickets(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_history_sprint ON ticket_sprint_history(sprint_id)`,
	`CREATE INDEX IF NOT EXISTS idx_columns_project ON columns(project_id)`,
}

func (d *Database) migrate(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx, defaultDBTimeout)
	defer cancel()
	for _, query := range schema {
		if _, err := d.DB.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, query := range indexes {
		if _, err := d.DB.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
