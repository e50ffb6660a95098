package feed

import (
	"fmt"
	"strings"
)

type FilteredRecord struct {
	Record
	IsFiltered   bool
	FilterReason string
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

func (f *Filterer) Run(records []Record, filters []SourceFilter) []FilteredRecord {
	result := make([]FilteredRecord, 0, len(records))
	for _, record := range records {
		isFiltered, filterReason := f.applyFilters(record, filters)
		result = append(result, FilteredRecord{
			Record:       record,
			IsFiltered:   isFiltered,
			FilterReason: filterReason,
		})
	}

	return result
}

func (f *Filterer) applyFilters(record Record, filters []SourceFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(record, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(record Record, field string) string {
	switch field {
	case "name":
		return record.Name
	case "text":
		return record.Text
	default:
		return ""
	}
}
