// Package message 定义发布到 Redis Streams 的标准消息格式。
package message

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// 错误定义
var (
	ErrInvalidChecksum = errors.New("消息校验和不匹配")
	ErrInvalidFormat   = errors.New("消息格式无效")
)

// 消息的数据类型
const (
	DataTypeMarketResult = "market_result"
	DataTypeRunSummary   = "run_summary"
)

// Version 消息格式版本
const Version = "1.0"

// Header 消息头部信息
type Header struct {
	MessageID   string `json:"messageId"`
	Timestamp   int64  `json:"timestamp"`
	Version     string `json:"version"`
	Producer    string `json:"producer"`
	ContentType string `json:"contentType"`
}

// Metadata 消息元数据
type Metadata struct {
	RunID     string `json:"runId"`
	DataType  string `json:"dataType"`
	Market    string `json:"market,omitempty"`
	BatchSize int    `json:"batchSize"`
}

// Envelope 标准消息格式，Payload 保持序列化后的原始字节，校验和因此在往返后保持稳定
type Envelope struct {
	Header   Header          `json:"header"`
	Metadata Metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
	Checksum string          `json:"checksum"`
}

// NewEnvelope 创建消息，batchSize 为 payload 中包含的记录数
func NewEnvelope(producer string, meta Metadata, payload interface{}, now time.Time) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if meta.BatchSize == 0 {
		meta.BatchSize = 1
	}
	e := &Envelope{
		Header: Header{
			MessageID:   uuid.New().String(),
			Timestamp:   now.Unix(),
			Version:     Version,
			Producer:    producer,
			ContentType: "application/json",
		},
		Metadata: meta,
		Payload:  raw,
	}
	e.Checksum = e.calculateChecksum()
	return e, nil
}

// calculateChecksum 计算除 checksum 字段外的内容的校验和
func (e *Envelope) calculateChecksum() string {
	temp := Envelope{
		Header:   e.Header,
		Metadata: e.Metadata,
		Payload:  e.Payload,
	}
	data, err := json.Marshal(temp)
	if err != nil {
		return ""
	}
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Validate 验证消息完整性
func (e *Envelope) Validate() error {
	if e.Header.MessageID == "" || e.Metadata.DataType == "" {
		return ErrInvalidFormat
	}
	if e.Checksum != e.calculateChecksum() {
		return ErrInvalidChecksum
	}
	return nil
}

// Decode 把 payload 解析到 v
func (e *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// ToJSON 将消息转换为 JSON 字符串
func (e *Envelope) ToJSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromJSON 从 JSON 字符串解析消息
func FromJSON(s string) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// StreamName 根据前缀与数据类型获取 Redis Stream 名称
func StreamName(prefix, dataType string) string {
	if prefix == "" {
		prefix = "stream:fundbot"
	}
	switch dataType {
	case DataTypeMarketResult:
		return prefix + ":market"
	case DataTypeRunSummary:
		return prefix + ":run"
	default:
		return prefix + ":unknown"
	}
}
