package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rendis/echo/internal/query"
)

var projector = query.NewJQ()

// outputFlags selects how a read command prints its result.
type outputFlags struct {
	json bool
	jq   string
}

// structured reports whether the result should be printed as data.
func (f outputFlags) structured() bool {
	return f.json || f.jq != ""
}

// print writes v as indented JSON, or each output of the jq expression on
// its own line. String outputs are printed raw, like jq -r.
func (f outputFlags) print(ctx context.Context, w io.Writer, v any) error {
	if f.jq == "" {
		return writeJSON(w, v)
	}
	results, err := projector.Run(ctx, f.jq, v)
	if err != nil {
		return err
	}
	for _, r := range results {
		if s, ok := r.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseParam splits "key=value". The value is decoded as JSON when it is
// valid JSON, so numbers and booleans keep their type; anything else is a
// plain string.
func parseParam(kv string) (string, any, error) {
	key, raw, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("param %q: want key=value", kv)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return key, v, nil
	}
	return key, raw, nil
}

func parseParams(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, err := parseParam(kv)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
