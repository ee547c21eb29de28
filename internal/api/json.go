package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// maxBodyBytes caps request bodies; a full-day snapshot for a large tenant stays well under it.
const maxBodyBytes = 8 << 20

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     problemType(title),
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// problemType turns a title into a stable urn, e.g. "Invalid snapshot" -> urn:techdispatch:problem:invalid-snapshot.
func problemType(title string) string {
	if title == "" {
		return "about:blank"
	}
	slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))
	return "urn:techdispatch:problem:" + slug
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
