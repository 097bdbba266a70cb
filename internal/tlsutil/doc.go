// Package tlsutil 提供出站 HTTP 客户端的集中式 TLS 配置（TLS 1.2+，仅 AEAD 密码套件），
// 供推理抓取器与工作区上传器共用。
package tlsutil
