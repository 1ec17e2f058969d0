package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"fundbot/pkg/timing"
)

// CSVCodec 表头为 date,id,字段...，缺失值写空单元格
type CSVCodec struct{}

func (CSVCodec) Extension() string { return string(FormatCSV) }

func (CSVCodec) Encode(w io.Writer, schema Schema, rows []Row) error {
	cw := csv.NewWriter(w)
	header := append([]string{"date", "id"}, schema.Fields...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, r := range rows {
		record[0] = timing.FormatStamp(r.Date)
		record[1] = r.ID
		for i, field := range schema.Fields {
			if v, ok := r.Values[field]; ok {
				record[i+2] = strconv.FormatFloat(v, 'f', -1, 64)
			} else {
				record[i+2] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (CSVCodec) Decode(path string, schema Schema) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) < 2 || header[0] != "date" || header[1] != "id" {
		return nil, fmt.Errorf("unexpected csv header %v", header)
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := timing.ParseStamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := Row{Date: date, ID: record[1], Values: make(map[string]float64)}
		for i := 2; i < len(header) && i < len(record); i++ {
			if record[i] == "" || !schema.Has(header[i]) {
				continue
			}
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, header[i], err)
			}
			row.Values[header[i]] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// JSONCodec 缩进的 JSON 数组
type JSONCodec struct{}

type jsonRow struct {
	Date   string             `json:"date"`
	ID     string             `json:"id"`
	Values map[string]float64 `json:"values"`
}

func (JSONCodec) Extension() string { return string(FormatJSON) }

func (JSONCodec) Encode(w io.Writer, schema Schema, rows []Row) error {
	out := make([]jsonRow, 0, len(rows))
	for _, r := range rows {
		values := make(map[string]float64, len(schema.Fields))
		for _, field := range schema.Fields {
			if v, ok := r.Values[field]; ok {
				values[field] = v
			}
		}
		out = append(out, jsonRow{Date: timing.FormatStamp(r.Date), ID: r.ID, Values: values})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (JSONCodec) Decode(path string, schema Schema) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in []jsonRow
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(in))
	for i, jr := range in {
		date, err := timing.ParseStamp(jr.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		values := make(map[string]float64, len(jr.Values))
		for k, v := range jr.Values {
			if schema.Has(k) {
				values[k] = v
			}
		}
		rows = append(rows, Row{Date: date, ID: jr.ID, Values: values})
	}
	return rows, nil
}
