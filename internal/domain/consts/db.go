package consts

// Database table and column names for the session store.
const (
	DBSessionDownloads = "session_downloads"

	QSessionClientID  = "client_id"
	QSessionJobID     = "job_id"
	QSessionCreatedAt = "created_at"
)
