package api

import (
    _ "embed"
    "encoding/json"
    "net/http"

    yaml "gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISpec []byte

// OpenAPIHandler serves the OpenAPI document as YAML, or as JSON with ?format=json.
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if r.URL.Query().Get("format") != "json" {
        w.Header().Set("Content-Type", "application/yaml")
        w.WriteHeader(200)
        _, _ = w.Write(openAPISpec)
        return
    }
    var obj map[string]any
    if err := yaml.Unmarshal(openAPISpec, &obj); err != nil { writeProblem(w, 500, "OpenAPI parse failed", err.Error(), r.URL.Path); return }
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(200)
    _ = json.NewEncoder(w).Encode(obj)
}
