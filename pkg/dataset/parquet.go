package dataset

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"fundbot/pkg/timing"
)

// parquetRecord 数据集在 parquet 文件中的行格式，未采集的字段为空值
type parquetRecord struct {
	Date        string   `parquet:"date"`
	ID          string   `parquet:"id"`
	Open        *float64 `parquet:"open,optional"`
	High        *float64 `parquet:"high,optional"`
	Low         *float64 `parquet:"low,optional"`
	Close       *float64 `parquet:"close,optional"`
	AdjClose    *float64 `parquet:"adj_close,optional"`
	Volume      *float64 `parquet:"volume,optional"`
	QuoteVolume *float64 `parquet:"quote_volume,optional"`
	Trades      *float64 `parquet:"trades,optional"`
	Value       *float64 `parquet:"value,optional"`
}

func (p *parquetRecord) slots() map[string]**float64 {
	return map[string]**float64{
		FieldOpen:        &p.Open,
		FieldHigh:        &p.High,
		FieldLow:         &p.Low,
		FieldClose:       &p.Close,
		FieldAdjClose:    &p.AdjClose,
		FieldVolume:      &p.Volume,
		FieldQuoteVolume: &p.QuoteVolume,
		FieldTrades:      &p.Trades,
		FieldValue:       &p.Value,
	}
}

// ParquetCodec 默认的数据集格式
type ParquetCodec struct{}

func (ParquetCodec) Extension() string { return string(FormatParquet) }

func (ParquetCodec) Encode(w io.Writer, schema Schema, rows []Row) error {
	records := make([]parquetRecord, 0, len(rows))
	for _, r := range rows {
		rec := parquetRecord{Date: timing.FormatStamp(r.Date), ID: r.ID}
		slots := rec.slots()
		for _, field := range schema.Fields {
			v, ok := r.Values[field]
			if !ok {
				continue
			}
			slot, known := slots[field]
			if !known {
				return fmt.Errorf("field %q has no parquet column", field)
			}
			value := v
			*slot = &value
		}
		records = append(records, rec)
	}
	return parquet.Write(w, records)
}

func (ParquetCodec) Decode(path string, schema Schema) ([]Row, error) {
	records, err := parquet.ReadFile[parquetRecord](path)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records))
	for i := range records {
		rec := &records[i]
		date, err := timing.ParseStamp(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		row := Row{Date: date, ID: rec.ID, Values: make(map[string]float64)}
		slots := rec.slots()
		for _, field := range schema.Fields {
			if slot, ok := slots[field]; ok && *slot != nil {
				row.Values[field] = **slot
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
