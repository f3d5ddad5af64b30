package domain

// IngestionCheckpoint marks how far fill ingestion has progressed for a
// whale, so restarts resume instead of re-walking full history.
// Corresponds to the ingestion_checkpoints table in PostgreSQL.
type IngestionCheckpoint struct {
	WhaleID      string
	LastFillTime int64 // timestamp of the newest ingested fill (ms)
	UpdatedAt    int64 // checkpoint write time (ms)
}
