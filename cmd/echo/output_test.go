package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/echo/pkg/schema"
)

func TestParseParam(t *testing.T) {
	tests := []struct {
		in      string
		key     string
		want    any
		wantErr bool
	}{
		{in: "amount=500", key: "amount", want: float64(500)},
		{in: "url=https://shop.example", key: "url", want: "https://shop.example"},
		{in: "clear=true", key: "clear", want: true},
		{in: "text=a=b", key: "text", want: "a=b"},
		{in: `text="42"`, key: "text", want: "42"},
		{in: "empty=", key: "empty", want: ""},
		{in: "noequals", wantErr: true},
		{in: "=value", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			k, v, err := parseParam(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.key, k)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestParseParams_Empty(t *testing.T) {
	m, err := parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestOutputFlags_Print(t *testing.T) {
	steps := []schema.Step{
		{ID: "A", Action: schema.ActionNavigate, Risk: schema.RiskLow},
		{ID: "B", Action: schema.ActionWait, Risk: schema.RiskHigh},
	}
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, outputFlags{jq: ".[].id"}.print(ctx, &buf, steps))
	assert.Equal(t, "A\nB\n", buf.String())

	buf.Reset()
	require.NoError(t, outputFlags{jq: `map(select(.risk == "high")) | length`}.print(ctx, &buf, steps))
	assert.Equal(t, "1\n", buf.String())

	buf.Reset()
	require.NoError(t, outputFlags{json: true}.print(ctx, &buf, steps[:1]))
	assert.Contains(t, buf.String(), `"action": "navigate"`)

	err := outputFlags{jq: ".["}.print(ctx, &buf, steps)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}
