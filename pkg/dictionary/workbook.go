package dictionary

import (
	"io"
	"math"

	"fundbot/pkg/storage"

	"github.com/xuri/excelize/v2"
)

// OverviewSheet 工作簿中的总览表名
const OverviewSheet = "markets"

var overviewHeader = []interface{}{
	"market", "file", "rows", "start", "end", "unique_ids", "last_fetch_date", "frequency", "api_call_interval", "last_modified",
}

var statsHeader = []interface{}{"column", "min", "max", "mean", "std", "null_count"}

// WriteWorkbook 把数据字典导出为 xlsx：一张总览表，每个市场一张列统计表
func WriteWorkbook(path string, d *Dictionary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), OverviewSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(OverviewSheet, "A1", &overviewHeader); err != nil {
		return err
	}

	for i, market := range sortedKeys(d.Markets) {
		entry := d.Markets[market]
		a := entry.DataAnalysis
		row := []interface{}{
			market, entry.FileName, a.RowCount, deref(a.DateRange.Start), deref(a.DateRange.End),
			a.UniqueIDs, deref(a.LastFetchDate), a.CollectionFrequency, a.APICallInterval, entry.FileInfo.LastModified,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(OverviewSheet, cell, &row); err != nil {
			return err
		}

		if err := writeStatsSheet(f, market, entry.DataAnalysis); err != nil {
			return err
		}
	}

	return storage.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

func writeStatsSheet(f *excelize.File, market string, a Analysis) error {
	if _, err := f.NewSheet(market); err != nil {
		return err
	}
	if err := f.SetSheetRow(market, "A1", &statsHeader); err != nil {
		return err
	}
	// 列顺序与数据集一致，date 与 id 不是数值列
	n := 2
	for _, col := range a.Columns {
		s, ok := a.ColumnStats[col]
		if !ok {
			continue
		}
		row := []interface{}{col, cellValue(s.Min), cellValue(s.Max), cellValue(s.Mean), cellValue(s.Std), s.NullCount}
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(market, cell, &row); err != nil {
			return err
		}
		n++
	}
	return nil
}

func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
