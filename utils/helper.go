package utils

import (
	"strings"
)

// NormalizeName lowercases and trims a free-text name so crew names and
// equipment locations typed by different operators still match.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// UniqueSlice removes duplicates, preserving first-seen order.
func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

// ChunkSlice splits a slice into consecutive chunks of at most size elements.
func ChunkSlice[T any](slice []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var chunks [][]T
	for i := 0; i < len(slice); i += size {
		end := i + size
		if end > len(slice) {
			end = len(slice)
		}
		chunks = append(chunks, slice[i:end])
	}
	return chunks
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
