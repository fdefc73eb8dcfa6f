// Package graphql serves a graphql-go schema over HTTP.
//
//	schema, err := graphql.NewSchema(queryType, mutationType)
//	router.Post("/graphql", "graphql", graphql.Handler(schema))
package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/orderdesk/pkg/bind"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

// NewSchema builds a schema from a root query and an optional root mutation.
func NewSchema(query, mutation *graphql.Object) (graphql.Schema, error) {
	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}

// Request is a GraphQL-over-HTTP POST body.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Handler executes POSTed queries against schema. Resolver errors are
// reported in the result's errors array with HTTP 200; only an unreadable
// body is a 400.
func Handler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := bind.Decode(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"errors": []map[string]string{{"message": err.Error()}},
			})
			return
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        r.Context(),
		})
		if result.HasErrors() {
			logger.WithCtx(r.Context()).Debug("graphql: query returned errors", "errors", len(result.Errors))
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
