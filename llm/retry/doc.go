// Package retry 提供固定延迟的有界重试器。
//
// 限流错误（RATE_LIMITED）与传输错误（TRANSPORT）分别使用
// RateLimitDelay 与 FailureDelay；上游错误默认不重试。
// 所有等待均可通过 context 取消。
package retry
