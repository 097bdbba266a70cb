package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/fluxagent/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoInput struct {
	Text  string `json:"text"`
	Times int    `json:"times"`
}

func (in *echoInput) Validate() error {
	if in.Times > 3 {
		return errors.New("times must be at most 3")
	}
	return nil
}

func echoSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		AddProperty("text", types.NewStringSchema().WithMinLength(1)).
		AddProperty("times", types.NewIntegerSchema().WithDefault(1)).
		AddRequired("text").
		Closed()
}

func newEchoRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(time.Second, zap.NewNop())
	err := Register(r, "echo", CapabilityOptions{Description: "repeat text", Parameters: echoSchema()},
		func(ctx context.Context, in *echoInput) (string, error) {
			out := ""
			for i := 0; i < in.Times; i++ {
				out += in.Text
			}
			return out, nil
		})
	require.NoError(t, err)
	return r
}

func TestRegistry_RunAppliesDefaults(t *testing.T) {
	r := newEchoRegistry(t)

	out, err := r.Run(context.Background(), "echo", json.RawMessage(`{"text":"ab"}`))
	require.NoError(t, err)
	assert.Equal(t, "ab", out)

	out, err = r.Run(context.Background(), "echo", json.RawMessage(`{"text":"ab","times":3}`))
	require.NoError(t, err)
	assert.Equal(t, "ababab", out)
}

func TestRegistry_RunValidation(t *testing.T) {
	r := newEchoRegistry(t)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "schema violation", raw: `{"text":""}`, want: "at least 1 characters"},
		{name: "unknown field", raw: `{"text":"a","loud":true}`, want: "loud is not allowed"},
		{name: "input validate", raw: `{"text":"a","times":4}`, want: "times must be at most 3"},
		{name: "malformed", raw: `{"text":`, want: "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Run(context.Background(), "echo", json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.Equal(t, types.ErrToolValidation, types.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistry_DuplicateAndNotFound(t *testing.T) {
	r := newEchoRegistry(t)

	err := Register(r, "echo", CapabilityOptions{}, func(ctx context.Context, in *echoInput) (string, error) { return "", nil })
	assert.Error(t, err)

	err = Register(r, " ", CapabilityOptions{}, func(ctx context.Context, in *echoInput) (string, error) { return "", nil })
	assert.Error(t, err)

	_, err = r.Run(context.Background(), "missing", nil)
	assert.Equal(t, types.ErrCapabilityNotFound, types.GetErrorCode(err))
	assert.True(t, r.Has("echo"))
	assert.False(t, r.Has("missing"))
}

func TestRegistry_Timeout(t *testing.T) {
	r := NewRegistry(time.Second, zap.NewNop())
	require.NoError(t, Register(r, "slow", CapabilityOptions{Timeout: 20 * time.Millisecond},
		func(ctx context.Context, in *HelpInput) (string, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return "late", nil
		}))

	_, err := r.Run(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "timed out after 20ms")
}

func TestRegistry_HandlerError(t *testing.T) {
	r := NewRegistry(0, nil)
	boom := errors.New("boom")
	require.NoError(t, Register(r, "fail", CapabilityOptions{},
		func(ctx context.Context, in *HelpInput) (string, error) { return "", boom }))

	_, err := r.Run(context.Background(), "fail", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, boom)
}

func TestApplyDefaults(t *testing.T) {
	out, err := applyDefaults(echoSchema(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"times":1}`, string(out))

	out, err = applyDefaults(echoSchema(), json.RawMessage(`{"times":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"times":2}`, string(out))
}
