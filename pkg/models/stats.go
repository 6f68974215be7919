package models

import "time"

// DayCount is one day's bucket in an aggregate stats response.
type DayCount struct {
	Day         string `json:"day"`
	Records     int    `json:"records"`
	Occurrences int    `json:"occurrences"`
}

// ErrorStats aggregates error records over a trailing window, bucketed by
// source, module and day of last occurrence.
type ErrorStats struct {
	WindowStart      time.Time      `json:"window_start"`
	WindowEnd        time.Time      `json:"window_end"`
	TotalRecords     int            `json:"total_records"`
	TotalOccurrences int            `json:"total_occurrences"`
	BySource         map[string]int `json:"by_source"`
	ByModule         map[string]int `json:"by_module"`
	ByDay            []DayCount     `json:"by_day"`
}
