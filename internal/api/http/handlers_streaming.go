package apihttp

import (
	"net/http"
	"strconv"

	"magnetstream/internal/domain"
	"magnetstream/internal/transcode"
)

// streamFile serves one file of an active session. Direct streams honor the
// start of a single Range; transcoded streams always begin at byte zero.
func (s *Server) streamFile(w http.ResponseWriter, r *http.Request, id domain.InfoHash, indexRaw string) {
	if s.streamSession == nil || s.pipeline == nil {
		writeError(w, http.StatusNotFound, "not_found", "streaming not available")
		return
	}

	fileIndex, err := strconv.Atoi(indexRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "file index must be an integer")
		return
	}

	forceTranscode, err := parseBoolQuery(r.URL.Query().Get("transcode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "transcode must be true or false")
		return
	}

	// The file size is unknown until the session is looked up, so range
	// validation against size happens inside the stream use case. Here only
	// the syntactic start position is extracted.
	offset, err := parseRangeStart(r.Header.Get("Range"), 0)
	if err != nil {
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "invalid_range", "unsupported Range header")
		return
	}

	source, err := s.streamSession.Execute(r.Context(), id, fileIndex, forceTranscode, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	err = s.pipeline.Deliver(r.Context(), source.Reader, w, transcode.Request{
		Size:      source.File.Size,
		Offset:    source.Offset,
		Transcode: source.Transcode,
	})
	if err != nil {
		// Headers not sent yet on this path, an error status still works.
		writeDomainError(w, err)
	}
}
