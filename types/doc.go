// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 fluxagent 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、workspace、agent、
api 等上层模块提供统一的类型契约。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - JSONSchema：能力参数的 JSON Schema 定义、构建器与校验
  - CapabilitySchema：能力描述（name + description + parameters）

# 主要能力

  - 错误构造：NewUpstreamError / NewRateLimitError / NewTransportError /
    NewExhaustedRetriesError / NewUploadError
  - 错误查询：AsError / IsErrorCode / IsRetryable / GetErrorCode
  - Context 传播：WithRequestID / WithSubject
*/
package types
