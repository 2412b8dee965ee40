package services

import "strings"

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// uniqueStrings trims, drops empties and removes duplicates, keeping the
// first occurrence. The result is never nil.
func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// normalizePage applies defaults to 1-based page numbers and clamps the size.
func normalizePage(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return 0, 0, Validation("page must be >= 1")
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, Validation("page_size must be between 1 and 200")
	}
	return page, pageSize, nil
}

func totalPages(total int64, pageSize int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// likePattern builds a case-insensitive LIKE pattern with wildcards escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(s))) + "%"
}
