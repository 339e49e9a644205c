// Package di wires the application's databases, services and jobs.
package di

import (
	"github.com/aristath/cryptowallet/internal/database"
	"github.com/aristath/cryptowallet/internal/modules/history"
	"github.com/aristath/cryptowallet/internal/modules/quotes"
	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/aristath/cryptowallet/internal/modules/runs"
	"github.com/aristath/cryptowallet/internal/scheduler"
)

// Container holds all dependencies for the application. It is created by Wire.
type Container struct {
	// Databases
	HistoryDB *database.DB // history.db - imported daily prices
	RunsDB    *database.DB // runs.db - optimizer runs and their outcome

	// Repositories
	HistoryStore *history.HistoryDB
	RunRepo      *runs.Repository

	// Services
	QuoteLoader     *quotes.Loader
	ReturnsProvider *returns.Provider
	RunSearchers    runs.SearcherFactory
	Archiver        *runs.Archiver
	RunService      *runs.Service

	// Jobs
	ImportJob        *history.ImportJob
	WALCheckpointJob *scheduler.WALCheckpointJob
}

// Databases returns every open database
func (c *Container) Databases() []*database.DB {
	var out []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.RunsDB} {
		if db != nil {
			out = append(out, db)
		}
	}
	return out
}

// Jobs returns the background jobs, for scheduling and manual triggers
func (c *Container) Jobs() []scheduler.Job {
	return []scheduler.Job{c.ImportJob, c.WALCheckpointJob}
}

// Close closes every open database
func (c *Container) Close() {
	for _, db := range c.Databases() {
		db.Close()
	}
}
