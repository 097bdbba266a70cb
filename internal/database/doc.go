// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供生成历史所用数据库的打开与连接池管理。

# 概述

Open 根据 config.DatabaseConfig.Driver 选择 GORM 方言
（postgres、mysql，或基于 glebarez 纯 Go 实现的 sqlite），
并返回 PoolManager。Driver 为空时不启用数据库。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close() 与 WithTransaction。
  - PoolConfig：连接池配置，可由 PoolConfigFrom 从全局配置派生。
  - StatsReporter：健康检查时接收连接数快照，metrics.Collector 实现了它。

# 主要能力

  - 健康检查：StartHealthCheck 启动后台探活，Close 或 ctx 取消时退出。
  - 统计采集：GetStats 返回结构化的连接池运行指标。
*/
package database
