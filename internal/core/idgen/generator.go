// Package idgen 提供会话 ID 生成
package idgen

import (
	"github.com/google/uuid"
)

// ID 类型前缀
const (
	PrefixSessionID = "sess_"
)

// IDGenerator 泛型 ID 生成器接口
type IDGenerator[T any] interface {
	Generate() (T, error)
	Close() error
}

// UUIDGenerator 基于 UUID v7 的 ID 生成器
// UUID v7 有 122 位随机性，冲突概率可忽略，不需要跟踪已使用的 ID
type UUIDGenerator struct {
	prefix string
}

// NewUUIDGenerator 创建 UUID 生成器
func NewUUIDGenerator(prefix string) *UUIDGenerator {
	return &UUIDGenerator{
		prefix: prefix,
	}
}

// NewSessionIDGenerator 创建会话 ID 生成器
func NewSessionIDGenerator() *UUIDGenerator {
	return NewUUIDGenerator(PrefixSessionID)
}

// Generate 生成唯一 ID
// UUID v7 是时间有序的，按生成时间排序即按接入时间排序
func (g *UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		// 回退到 UUID v4
		id = uuid.New()
	}

	if g.prefix != "" {
		return g.prefix + id.String(), nil
	}
	return id.String(), nil
}

// Close 关闭生成器
func (g *UUIDGenerator) Close() error {
	return nil
}

// 编译时接口断言
var _ IDGenerator[string] = (*UUIDGenerator)(nil)
