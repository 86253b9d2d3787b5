package traffic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Totals 累计流量（字节）
type Totals struct {
	Up   uint64 `json:"up"`
	Down uint64 `json:"down"`
}

// Persister 累计流量的持久化接口
type Persister interface {
	Load() (Totals, error)
	Save(Totals) error
}

// Store 基于 JSON 文件的累计流量存储
type Store struct {
	path string
}

// NewStore 创建文件存储
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path 返回持久化文件路径
func (s *Store) Path() string {
	return s.path
}

// Load 从文件读取累计流量，文件不存在时返回零值
func (s *Store) Load() (Totals, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Totals{}, nil
		}
		return Totals{}, fmt.Errorf("读取流量持久化文件失败: %w", err)
	}

	var t Totals
	if err := json.Unmarshal(data, &t); err != nil {
		return Totals{}, fmt.Errorf("解析流量持久化文件失败: %w", err)
	}
	return t, nil
}

// Save 覆盖写入累计流量（先写临时文件再 rename）
func (s *Store) Save(t Totals) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("序列化流量数据失败: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建流量持久化目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".traffic-*.tmp")
	if err != nil {
		return fmt.Errorf("写入流量持久化文件失败: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("写入流量持久化文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("写入流量持久化文件失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("替换流量持久化文件失败: %w", err)
	}
	return nil
}
