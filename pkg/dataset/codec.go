package dataset

import (
	"fmt"
	"io"
	"strings"
)

// Format 数据集文件格式
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
)

// Codec 数据集文件编解码器
type Codec interface {
	// Encode 把全部行写入 w
	Encode(w io.Writer, schema Schema, rows []Row) error
	// Decode 读取 path 处的完整数据集
	Decode(path string, schema Schema) ([]Row, error)
	// Extension 文件扩展名，不含点
	Extension() string
}

// NewCodec 根据格式名创建编解码器
func NewCodec(format string) (Codec, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatParquet, "":
		return ParquetCodec{}, nil
	case FormatCSV:
		return CSVCodec{}, nil
	case FormatJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported dataset format %q (use parquet, csv or json)", format)
	}
}
