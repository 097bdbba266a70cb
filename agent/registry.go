package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/fluxagent/types"
	"go.uber.org/zap"
)

// Input is implemented by every typed capability argument struct.
type Input interface {
	Validate() error
}

// CapabilityOptions describes a capability at registration time.
type CapabilityOptions struct {
	Description string
	Parameters  *types.JSONSchema
	Timeout     time.Duration // 0 uses the registry default
}

type runFunc func(ctx context.Context, raw json.RawMessage) (string, error)

type capability struct {
	schema  types.CapabilitySchema
	timeout time.Duration
	run     runFunc
}

// ====== Registry ======

// Registry maps capability names to validated, typed handlers.
type Registry struct {
	mu             sync.RWMutex
	caps           map[string]*capability
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// NewRegistry 创建能力注册中心。
func NewRegistry(defaultTimeout time.Duration, logger *zap.Logger) *Registry {
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		caps:           make(map[string]*capability),
		defaultTimeout: defaultTimeout,
		logger:         logger.With(zap.String("component", "capability_registry")),
	}
}

// Register adds a typed capability. Arguments are validated against
// opts.Parameters, schema defaults are applied, the document is decoded
// strictly into a fresh T and T.Validate runs before fn.
func Register[T any, PT interface {
	*T
	Input
}](r *Registry, name string, opts CapabilityOptions, fn func(ctx context.Context, in PT) (string, error)) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("capability name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("capability %s has no handler", name)
	}
	if opts.Parameters == nil {
		opts.Parameters = types.NewObjectSchema()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = r.defaultTimeout
	}

	schema := opts.Parameters
	c := &capability{
		schema: types.CapabilitySchema{
			Name:        name,
			Description: opts.Description,
			Parameters:  schema,
		},
		timeout: opts.Timeout,
		run: func(ctx context.Context, raw json.RawMessage) (string, error) {
			in, err := decodeInput[T, PT](schema, raw)
			if err != nil {
				return "", err
			}
			return fn(ctx, in)
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.caps[name]; exists {
		return fmt.Errorf("capability %s already registered", name)
	}
	r.caps[name] = c

	r.logger.Info("capability registered", zap.String("name", name), zap.Duration("timeout", opts.Timeout))
	return nil
}

func decodeInput[T any, PT interface {
	*T
	Input
}](schema *types.JSONSchema, raw json.RawMessage) (PT, error) {
	if err := schema.Validate(raw); err != nil {
		return nil, types.NewError(types.ErrToolValidation, "invalid arguments").WithCause(err)
	}

	doc, err := applyDefaults(schema, raw)
	if err != nil {
		return nil, types.NewError(types.ErrToolValidation, "invalid arguments").WithCause(err)
	}

	in := PT(new(T))
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(in); err != nil {
		return nil, types.NewError(types.ErrToolValidation, "invalid arguments").WithCause(err)
	}
	if err := in.Validate(); err != nil {
		return nil, types.NewError(types.ErrToolValidation, "invalid arguments").WithCause(err)
	}
	return in, nil
}

// applyDefaults fills absent top-level properties that declare a default.
func applyDefaults(schema *types.JSONSchema, raw json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	for name, prop := range schema.Properties {
		if prop == nil || prop.Default == nil {
			continue
		}
		if _, ok := doc[name]; ok {
			continue
		}
		v, err := json.Marshal(prop.Default)
		if err != nil {
			return nil, err
		}
		doc[name] = v
	}
	return json.Marshal(doc)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[name]
	return ok
}

// List returns all capability schemas sorted by name.
func (r *Registry) List() []types.CapabilitySchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]types.CapabilitySchema, 0, len(r.caps))
	for _, c := range r.caps {
		schemas = append(schemas, c.schema)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Run executes the named capability with raw JSON arguments under the
// capability timeout.
func (r *Registry) Run(ctx context.Context, name string, raw json.RawMessage) (string, error) {
	r.mu.RLock()
	c, ok := r.caps[name]
	r.mu.RUnlock()
	if !ok {
		return "", types.NewError(types.ErrCapabilityNotFound, fmt.Sprintf("capability %s not found", name))
	}

	start := time.Now()
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		res string
		err error
	}
	// 带缓冲，超时后 goroutine 仍可退出
	done := make(chan outcome, 1)
	go func() {
		res, err := c.run(execCtx, raw)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			r.logger.Error("capability failed",
				zap.String("name", name),
				zap.Error(o.err),
				zap.Duration("duration", time.Since(start)))
			return "", o.err
		}
		r.logger.Info("capability executed",
			zap.String("name", name),
			zap.Duration("duration", time.Since(start)))
		return o.res, nil

	case <-execCtx.Done():
		if ctx.Err() != nil {
			return "", types.NewError(types.ErrTimeout, "capability cancelled").WithCause(ctx.Err())
		}
		r.logger.Error("capability timeout",
			zap.String("name", name),
			zap.Duration("timeout", c.timeout))
		return "", types.NewError(types.ErrTimeout, fmt.Sprintf("capability %s timed out after %s", name, c.timeout)).
			WithCause(execCtx.Err())
	}
}
