package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperr "fundbot/pkg/error"
	"fundbot/pkg/storage"
)

// Store 按市场管理数据集文件，每个市场一个 {market}.{ext} 文件
type Store struct {
	dir   string
	codec Codec
}

// NewStore 创建数据集存储
func NewStore(dir string, codec Codec) *Store {
	if codec == nil {
		codec = ParquetCodec{}
	}
	return &Store{dir: dir, codec: codec}
}

// Dir 数据目录
func (s *Store) Dir() string {
	return s.dir
}

// Codec 返回当前使用的编解码器
func (s *Store) Codec() Codec {
	return s.codec
}

// Path 返回市场数据集文件路径
func (s *Store) Path(market string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.%s", market, s.codec.Extension()))
}

// Exists 判断市场数据集是否已存在
func (s *Store) Exists(market string) bool {
	return storage.Exists(s.Path(market))
}

// Load 读取市场数据集，文件不存在时返回空集合
func (s *Store) Load(schema Schema) ([]Row, error) {
	path := s.Path(schema.Market)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	rows, err := s.codec.Decode(path, schema)
	if err != nil {
		return nil, apperr.WrapError(apperr.CodePersistence, "read dataset "+path, err).
			WithContext("market", schema.Market)
	}
	return rows, nil
}

// Save 原子地整体替换市场数据集
func (s *Store) Save(schema Schema, rows []Row) error {
	path := s.Path(schema.Market)
	err := storage.WriteFileAtomic(path, func(w io.Writer) error {
		return s.codec.Encode(w, schema, rows)
	})
	if err != nil {
		return apperr.WrapError(apperr.CodePersistence, "write dataset "+path, err).
			WithContext("market", schema.Market)
	}
	return nil
}
