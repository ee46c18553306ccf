package config

import (
	"errors"
	"path/filepath"
)

// StorageConfig 存储配置
//
// 路由句柄默认只在进程内单调递增。配置 DataDir 后，
// 句柄分配的高水位持久化到 BadgerDB，重启后也不会复用。
//
// 数据目录结构：
//
//	${DataDir}/
//	└── handles.db/         # BadgerDB（句柄高水位）
type StorageConfig struct {
	// DataDir 数据目录路径，为空时使用内存分配器
	DataDir string `json:"data_dir,omitempty"`

	// HandleBlock 每次向磁盘预留的句柄数量
	HandleBlock uint64 `json:"handle_block"`

	// SyncWrites 是否同步写入
	SyncWrites bool `json:"sync_writes"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:     "",
		HandleBlock: 1024,
		SyncWrites:  true,
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if c.HandleBlock == 0 {
		return errors.New("storage: handle_block must be positive")
	}
	return nil
}

// Durable 是否启用持久化
func (c *StorageConfig) Durable() bool {
	return c.DataDir != ""
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "handles.db")
}
