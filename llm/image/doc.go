// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 image 提供文生图推理调用的抽象与实现。

# 概述

RetryingFetcher 对推理端点发起 POST 请求（JSON 体 {"inputs": prompt}，
Bearer 鉴权），把响应分类为限流、上游错误或传输错误，并交由
llm/retry 按固定延迟重试：限流等待 65 秒，传输失败等待 5 秒，
最多 3 次尝试。

# 核心类型

  - RequestSpec：URL、凭证、prompt 与附加请求头，发请求前校验。
  - ImagePayload：成功响应的原始字节、Content-Type 与尝试次数。
  - Generator：文生图提供者接口。
  - HuggingFaceProvider：基于 Hugging Face Inference API 的实现，
    默认模型 black-forest-labs/FLUX.1-schnell。
*/
package image
