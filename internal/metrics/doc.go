// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、
推理抓取、图像生成、工作区上传与数据库连接。

# 概述

Collector 使用 promauto 自动注册指标，按 namespace 隔离。
它同时实现 image.AttemptObserver 与 agent.Observer，
由 cmd/fluxagent 在组装时注入。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 推理指标：每次 HTTP 尝试按 outcome 计数与计时。
  - 生成指标：按 succeeded / upload_failed / failed 计数与计时。
  - 上传指标：按 uploader / status 计数。
  - 数据库指标：活跃/空闲连接数 Gauge。
*/
package metrics
