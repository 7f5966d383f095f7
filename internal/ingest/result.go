// Package ingest pulls trending items from platform APIs and upserts them as trends.
package ingest

import "encoding/json"

// Result is the uniform outcome of a fetch. It marshals to
// {"status":"success","count":N} or {"error":"..."}.
type Result struct {
	Count int
	Error string
}

func success(count int) Result {
	return Result{Count: count}
}

func failure(msg string) Result {
	return Result{Error: msg}
}

// OK reports whether the fetch completed.
func (r Result) OK() bool {
	return r.Error == ""
}

func (r Result) MarshalJSON() ([]byte, error) {
	if !r.OK() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	return json.Marshal(struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}{"success", r.Count})
}
