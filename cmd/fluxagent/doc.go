// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 fluxagent 可执行程序入口。

# 概述

cmd/fluxagent 装配 FLUX 文生图 agent：带重试的 Hugging Face 推理提供者、
本地 / S3 存储、工作区上传、可选的生成历史数据库，以及对外暴露能力的
HTTP 服务与 Prometheus 指标端口。

# 核心类型

  - App：buildApp 装配出的组件集合，serve 与 generate 共用
  - Server：API 与 Metrics 双端口服务器，负责优雅关闭
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、generate（一次性生成并落盘）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、OTelTracing、RateLimiter（基于 IP）、JWTAuth 或 APIKeyAuth
  - 路由：GET /api/v1/capabilities、POST /api/v1/capabilities/{name}、
    GET /api/v1/generations[/{id}]，以及 /health、/healthz、/ready、/version
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
