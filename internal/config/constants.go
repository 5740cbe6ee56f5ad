package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Emergency dispatch runs detached from the request that created it.
const DispatchTimeout = 30 * time.Second

// Sweep iterations give up on the store after this long.
const SweepTimeout = 30 * time.Second

// Group filter limits
const MaxGroupsPerEmergency = 50

// Per-IP API rate limiting
const RateLimitWindow = 15 * time.Minute

// WebSocket frame limits
const (
	WSWriteWait       = 10 * time.Second
	WSMaxMessageBytes = 64 * 1024
	// Sockets that have not sent a register frame by then are closed.
	WSRegisterTimeout = 30 * time.Second
)
