// Package query содержит общие правила выборок: пагинацию, сортировку,
// фильтрацию в памяти, статистику и экспорт.
package query

import (
	"math"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Pagination struct {
	Page  int
	Limit int
}

// NewPagination нормализует параметры: page >= 1, limit в [1, MaxLimit].
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// Offset насыщается на math.MaxInt: страница за пределами выборки просто пустая.
func (p Pagination) Offset() int {
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

func (p Pagination) Info(total int64) models.PageInfo {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}

	return models.PageInfo{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

// Window возвращает границы среза [start, end) для n элементов.
func (p Pagination) Window(n int) (int, int) {
	start := p.Offset()
	if start < 0 || start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
