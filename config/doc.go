// Package config 提供 fluxagent 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → .env 文件 / 环境变量 的顺序叠加，
// 环境变量使用 FLUXAGENT_ 前缀；推理凭证缺省时回退到 HF_ACCESS_TOKEN。
package config
