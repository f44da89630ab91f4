package catalog

import (
	"encoding/json"
	"fmt"
)

// FlexCover handles flexible cover image formats from the API
type FlexCover []string

// UnmarshalJSON implements custom JSON unmarshaling for FlexCover
func (f *FlexCover) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = []string{s}
	case '[':
		var items []struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		urls := make([]string, 0, len(items))
		for _, item := range items {
			urls = append(urls, item.URL)
		}
		*f = urls
	case '{':
		var item struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		*f = []string{item.URL}
	}
	return nil
}

// First returns the first cover reference, or "".
func (f FlexCover) First() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// formatID converts various ID types to string
func formatID(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	var year int
	if _, err := fmt.Sscanf(date[:4], "%d", &year); err != nil {
		return 0
	}
	return year
}
