// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 概述

fluxagent 同时运行 API 服务器与 Prometheus 指标服务器，
两者都由 Manager 包装。WaitForShutdown 监听 SIGINT/SIGTERM、
ctx 取消与任一服务器的异步错误，返回后由调用方按顺序关闭。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道。
  - Config：监听地址、读写超时、空闲超时、最大请求头与关闭超时，
    可由 ConfigFrom 从 config.ServerConfig 派生。
*/
package server
