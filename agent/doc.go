// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package agent 实现 FLUX 图像生成 Agent。

# 概述

Service 是显式构造的 Agent 实例：持有能力注册中心（Registry）以及
generateImage 所需的协作者（图像生成器、本地存储、工作区上传器、
生成历史与指标）。通过 Start / Shutdown 管理生命周期。

# 能力

  - generateImage：{prompt, workspaceId?, filename?}，生成图像后保存到
    本地并上传到调用方工作区；上传失败时返回部分成功的说明文本。
  - help：返回示例 prompt 与使用建议。

# 注册中心

Register 使用泛型注册带类型的能力处理函数：参数先经 JSON Schema
校验，再补齐默认值、严格解码并调用 Input.Validate，最后在能力级
超时内执行。
*/
package agent
