package retry

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/fluxagent/types"
	"go.uber.org/zap"
)

// Policy 定义固定延迟重试策略
// 限流（429）与其他瞬时失败使用两套独立的等待时间
type Policy struct {
	MaxAttempts         int                                          // 最大尝试次数（含首次）
	RateLimitDelay      time.Duration                                // 限流后的冷却时间
	FailureDelay        time.Duration                                // 传输失败后的等待时间
	RetryUpstreamErrors bool                                         // 是否重试 429 以外的 4xx/5xx
	OnRetry             func(state AttemptState, delay time.Duration) // 重试回调
}

// DefaultPolicy 返回默认的重试策略
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:    3,
		RateLimitDelay: 65 * time.Second,
		FailureDelay:   5 * time.Second,
	}
}

// AttemptState 单次请求的重试状态，请求结束后丢弃
type AttemptState struct {
	Attempt     int   // 已发起的尝试次数
	MaxAttempts int   // 尝试上限
	LastError   error // 最近一次失败
}

// Remaining 返回剩余可用的尝试次数
func (s AttemptState) Remaining() int {
	if s.Attempt >= s.MaxAttempts {
		return 0
	}
	return s.MaxAttempts - s.Attempt
}

// Classify 根据错误码决定是否重试以及等待时长
func (p *Policy) Classify(err error) (retry bool, delay time.Duration) {
	if err == nil {
		return false, 0
	}

	// 带错误码的错误优先：客户端超时包装为 TRANSPORT 时仍需重试
	e, ok := types.AsError(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, 0
		}
		// 未分类错误按传输失败处理
		return true, p.FailureDelay
	}

	switch e.Code {
	case types.ErrRateLimited:
		return true, p.RateLimitDelay
	case types.ErrTransport:
		return true, p.FailureDelay
	case types.ErrUpstreamError:
		if p.RetryUpstreamErrors {
			return true, p.FailureDelay
		}
		return false, 0
	default:
		if e.Retryable {
			return true, p.FailureDelay
		}
		return false, 0
	}
}

// Retryer 顺序执行尝试，失败时按策略等待后重试
type Retryer struct {
	policy Policy
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryer 创建重试器
func NewRetryer(policy *Policy, logger *zap.Logger) *Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := *policy
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.RateLimitDelay < 0 {
		p.RateLimitDelay = 0
	}
	if p.FailureDelay < 0 {
		p.FailureDelay = 0
	}

	return &Retryer{
		policy: p,
		logger: logger.With(zap.String("component", "retry")),
		sleep:  sleepContext,
	}
}

// Policy 返回生效的策略副本
func (r *Retryer) Policy() Policy {
	return r.policy
}

// Do 执行 fn，直到成功、遇到不可重试错误或次数耗尽
// 返回最终的 AttemptState；耗尽时错误为 RETRIES_EXHAUSTED 并包装最后一次失败
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context, state AttemptState) error) (AttemptState, error) {
	state := AttemptState{MaxAttempts: r.policy.MaxAttempts}

	for {
		if err := ctx.Err(); err != nil {
			return state, cancelled(err, state.LastError)
		}

		state.Attempt++
		err := fn(ctx, state)
		if err == nil {
			if state.Attempt > 1 {
				r.logger.Info("retry succeeded", zap.Int("attempt", state.Attempt))
			}
			state.LastError = nil
			return state, nil
		}
		state.LastError = err

		// 是否取消只看调用方的 ctx，不看错误链
		if ctxErr := ctx.Err(); ctxErr != nil {
			return state, cancelled(ctxErr, err)
		}

		retry, delay := r.policy.Classify(err)
		if !retry {
			r.logger.Debug("error is not retryable",
				zap.Int("attempt", state.Attempt),
				zap.Error(err),
			)
			return state, err
		}

		// 最后一次尝试后不再等待
		if state.Attempt >= state.MaxAttempts {
			r.logger.Warn("retries exhausted",
				zap.Int("attempts", state.Attempt),
				zap.Error(err),
			)
			return state, types.NewExhaustedRetriesError(state.Attempt, err)
		}

		r.logger.Debug("retrying",
			zap.Int("attempt", state.Attempt),
			zap.Int("max_attempts", state.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(state, delay)
		}

		if err := r.sleep(ctx, delay); err != nil {
			return state, cancelled(err, state.LastError)
		}
	}
}

func cancelled(ctxErr, last error) error {
	e := types.NewError(types.ErrTimeout, "retry cancelled").WithCause(ctxErr)
	if last != nil {
		e.Message = "retry cancelled after: " + last.Error()
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
