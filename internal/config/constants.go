package config

import "time"

// Application identity.
const (
	AppName    = "sprintledger"
	DBFileName = "sprintledger.db"
	EnvPrefix  = "SPRINTLEDGER"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default timeouts. Completion touches every ticket in the sprint, so it gets
// a far larger bound than the other lifecycle operations.
const (
	DefaultOperationTimeout  = 10 * time.Second
	DefaultCompletionTimeout = 45 * time.Second
	DefaultDBTimeout         = 5 * time.Second
)

// Lifecycle defaults.
const (
	DefaultExtendDays = 7
)

// DefaultDoneKeywords are matched case-insensitively against column names when
// no explicit done columns are given.
var DefaultDoneKeywords = []string{"done", "completed"}
