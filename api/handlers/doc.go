// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 fluxagent HTTP API 的请求处理器实现。

# 概述

所有 Handler 均遵循标准 net/http 接口，路由使用 Go 1.22 的
方法与路径参数模式（如 "POST /api/v1/capabilities/{name}"）。
结构化错误 types.Error 按错误码映射为 HTTP 状态码。

# 路由

	GET  /health, /healthz, /ready, /version
	GET  /api/v1/capabilities
	POST /api/v1/capabilities/{name}     body: {"args": {...}}
	GET  /api/v1/generations[?limit=N]
	GET  /api/v1/generations/{id}

# 核心类型

  - CapabilityHandler：列出并执行 agent 能力（generateImage、help）
  - GenerationHandler：查询生成历史，未配置数据库时返回 501
  - HealthHandler：存活、就绪与版本端点，RegisterCheck 注册检查
  - Response：统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码与字节数
*/
package handlers
