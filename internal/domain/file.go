package domain

// InfoHash is the canonical 40-character lowercase hex fingerprint of a
// torrent. It keys exactly one session for the lifetime of the process.
type InfoHash string

// FileEntry describes one file inside a torrent. Index is the stable ordinal
// assigned when metadata resolves; it is never reused or reordered for the
// session's lifetime.
type FileEntry struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
	IsMedia       bool   `json:"isMedia"`
}
