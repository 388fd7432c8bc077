package domain

// TrafficStats is a point-in-time snapshot of swarm traffic for one session.
// It is refreshed on demand from the engine, never pushed.
type TrafficStats struct {
	DownloadedBytes int64 `json:"downloadedBytes"`
	UploadedBytes   int64 `json:"uploadedBytes"`
	DownloadRateBps int64 `json:"downloadRateBps"`
	UploadRateBps   int64 `json:"uploadRateBps"`
	PeerCount       int   `json:"peerCount"`
}

// SessionStatus pairs a session id with its current traffic snapshot.
type SessionStatus struct {
	ID InfoHash `json:"id"`
	TrafficStats
}
