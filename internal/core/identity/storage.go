package identity

import (
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// pemTypeEd25519Private PEM 块类型
const pemTypeEd25519Private = "ED25519 PRIVATE KEY"

// ============================================================================
//                              私钥持久化
// ============================================================================

// Save 保存私钥到 PEM 文件
//
// 使用原子写操作（临时文件 + rename），文件权限 0600。
func Save(id *Identity, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("创建密钥目录失败: %w", err)
		}
	}
	data := pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeEd25519Private,
		Bytes: id.priv,
	})
	return atomicWriteFile(path, data, 0600)
}

// Load 从 PEM 文件加载私钥
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 PEM 编码的私钥
func Parse(data []byte) (*Identity, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}
	if block.Type != pemTypeEd25519Private {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, block.Type)
	}
	if len(block.Bytes) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	return FromPrivateKey(ed25519.PrivateKey(block.Bytes))
}

// LoadOrGenerate 加载密钥；文件不存在且 autoGenerate 时生成并保存
//
// path 为空时总是生成临时身份。
func LoadOrGenerate(path string, autoGenerate bool) (*Identity, error) {
	if path == "" {
		return Generate()
	}

	id, err := Load(path)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrKeyNotFound) || !autoGenerate {
		return nil, fmt.Errorf("加载身份失败: %w", err)
	}

	id, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := Save(id, path); err != nil {
		return nil, fmt.Errorf("保存身份失败: %w", err)
	}
	log.Info("已生成新身份", "identity", id.String(), "path", path)
	return id, nil
}

// ============================================================================
//                              原子写操作
// ============================================================================

// atomicWriteFile 原子写文件
//
// 如果任何步骤失败，目标文件保持不变。
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("原子 rename 失败: %w", err)
	}
	success = true
	return nil
}
