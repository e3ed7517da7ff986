// Package client is a Go client for the lumina catalog search API.
//
//	c, _ := client.New("http://localhost:8080", client.WithAPIKey(key))
//	id, _ := c.UpsertItem(ctx, client.Item{Text: "red running shoes", Payload: map[string]any{
//	    "title": "Runner 2", "category": "shoes", "price": 89.9, "in_stock": true,
//	}})
//	res, _ := c.Search(ctx, client.SearchRequest{Query: "running shoes", TopK: 5})
//
// Errors returned by the server are *APIError values; use errors.Is with
// ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrTimeout or ErrUnavailable
// to branch on them.
package client
