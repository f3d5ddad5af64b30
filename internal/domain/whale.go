package domain

// Whale is a tracked source account whose fills feed simulation and copying.
// Corresponds to the whales table in PostgreSQL.
type Whale struct {
	ID           string  // UUID
	Address      string  // venue account address (0x hex)
	Label        *string // operator-facing name (nullable)
	CreatedAt    int64   // record creation timestamp (ms)
	LastActiveAt *int64  // most recent observed fill (ms, nullable)
}
