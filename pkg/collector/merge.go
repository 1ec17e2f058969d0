package collector

import (
	"fundbot/pkg/dataset"
)

// Merge 合并已有数据与本次采集的数据。
// 以 (date, id) 去重，后出现的行覆盖先出现的行，结果按 (id, date) 排序。
// added 为已有数据中不存在的新键数量。
func Merge(existing, fresh []dataset.Row) (merged []dataset.Row, added int) {
	index := make(map[dataset.Key]int, len(existing)+len(fresh))
	merged = make([]dataset.Row, 0, len(existing)+len(fresh))

	upsert := func(r dataset.Row) bool {
		k := r.Key()
		if i, ok := index[k]; ok {
			merged[i] = r
			return false
		}
		index[k] = len(merged)
		merged = append(merged, r)
		return true
	}

	for _, r := range existing {
		upsert(r)
	}
	for _, r := range fresh {
		if upsert(r) {
			added++
		}
	}

	dataset.SortRows(merged)
	return merged, added
}
