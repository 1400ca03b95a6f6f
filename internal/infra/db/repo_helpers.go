package db

import (
	"errors"

	"gorm.io/datatypes"
)

var errDBUnavailable = errors.New("db unavailable")

func jsonMap(in map[string]any) datatypes.JSONMap {
	if in == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(in)
}

func fromJSONMap(in datatypes.JSONMap) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return map[string]any(in)
}

func stringPtrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringFromPtr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
