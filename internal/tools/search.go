package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type indexArgs struct {
	Index     string           `json:"index"`
	Query     map[string]any   `json:"query"`
	Document  map[string]any   `json:"document"`
	Documents []map[string]any `json:"documents"`
}

func searchTools(backend SearchBackend) []Tool {
	index := Param{Name: "index", Type: "string", Required: true, Description: "Index name"}

	return []Tool{
		{
			Name:        "list_elastic_indices",
			Description: "List all Elasticsearch indices.",
			Invoke: func(ctx context.Context, _ json.RawMessage) Result {
				names, err := backend.ListIndices(ctx)
				if err != nil {
					return Failure(err)
				}
				return Success(fmt.Sprintf("Found %d indices", len(names)), map[string]any{"indices": names})
			},
		},
		{
			Name:        "search_elastic_index",
			Description: "Run a search request body against an index.",
			Params: []Param{index,
				{Name: "query", Type: "object", Required: true, Description: "Search request body, e.g. {\"query\":{\"match_all\":{}}}"},
			},
			Invoke: func(ctx context.Context, raw json.RawMessage) Result {
				var a indexArgs
				if err := decodeArgs(raw, &a); err != nil {
					return Failure(err)
				}
				if err := required("index", a.Index); err != nil {
					return Failure(err)
				}
				res, err := backend.Search(ctx, a.Index, a.Query)
				if err != nil {
					return Failure(err)
				}
				return Success("Search completed", map[string]any{"results": res})
			},
		},
		{
			Name:        "ingest_elastic_document",
			Description: "Index one document.",
			Params: []Param{index,
				{Name: "document", Type: "object", Required: true},
			},
			Invoke: func(ctx context.Context, raw json.RawMessage) Result {
				var a indexArgs
				if err := decodeArgs(raw, &a); err != nil {
					return Failure(err)
				}
				if err := required("index", a.Index); err != nil {
					return Failure(err)
				}
				if a.Document == nil {
					return Failure(fmt.Errorf("document is required"))
				}
				res, err := backend.IndexDocument(ctx, a.Index, a.Document)
				if err != nil {
					return Failure(err)
				}
				return Success(fmt.Sprintf("Document indexed into %s", a.Index), map[string]any{"result": res})
			},
		},
		{
			Name:        "bulk_ingest_elastic",
			Description: "Index many documents with one bulk request.",
			Params: []Param{index,
				{Name: "documents", Type: "array", Required: true},
			},
			Invoke: func(ctx context.Context, raw json.RawMessage) Result {
				var a indexArgs
				if err := decodeArgs(raw, &a); err != nil {
					return Failure(err)
				}
				if err := required("index", a.Index); err != nil {
					return Failure(err)
				}
				res, err := backend.BulkIngest(ctx, a.Index, a.Documents)
				if err != nil {
					return Failure(err)
				}
				return Success(fmt.Sprintf("Bulk ingested %d documents into %s", len(a.Documents), a.Index),
					map[string]any{"result": res})
			},
		},
	}
}
