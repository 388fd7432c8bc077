// Package magnet parses magnet descriptors and normalizes them with the
// default tracker set so engine retries are deterministic.
package magnet

import (
	"net/url"
	"regexp"
	"strings"

	"magnetstream/internal/domain"
)

// DefaultTrackers is appended to every accepted magnet that does not already
// carry the entry. Order is fixed so normalization is deterministic.
var DefaultTrackers = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://open.tracker.cl:1337/announce",
	"udp://tracker.openbittorrent.com:6969/announce",
	"udp://open.demonii.com:1337/announce",
	"udp://exodus.desync.com:6969/announce",
	"udp://tracker.torrent.eu.org:451/announce",
	"udp://tracker.moeking.me:6969/announce",
	"udp://explodie.org:6969/announce",
	"udp://tracker.theoks.net:6969/announce",
	"udp://tracker1.bt.moack.co.kr:80/announce",
	"http://tracker.openbittorrent.com:80/announce",
	"http://tracker.files.fm:6969/announce",
}

var infoHashPattern = regexp.MustCompile(`(?i)btih:([0-9a-fA-F]{40})`)

// Resolve extracts the infohash from a magnet descriptor and returns it
// together with the tracker-normalized form of the descriptor. Normalization
// is idempotent: already-present trackers are not duplicated.
func Resolve(descriptor string) (domain.InfoHash, string, error) {
	trimmed := strings.TrimSpace(descriptor)
	match := infoHashPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return "", "", domain.ErrInvalidDescriptor
	}
	id := domain.InfoHash(strings.ToLower(match[1]))
	return id, appendTrackers(trimmed, DefaultTrackers), nil
}

func appendTrackers(magnetLink string, trackers []string) string {
	var builder strings.Builder
	builder.WriteString(magnetLink)
	for _, tracker := range trackers {
		encoded := url.QueryEscape(tracker)
		if strings.Contains(magnetLink, tracker) || strings.Contains(magnetLink, encoded) {
			continue
		}
		builder.WriteString("&tr=")
		builder.WriteString(encoded)
	}
	return builder.String()
}
