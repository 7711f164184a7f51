// Package option holds composable gorm query modifiers shared by the
// repositories.
package option

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ   Operator = "="
	NEQ  Operator = "<>"
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	IN   Operator = "IN"
	LIKE Operator = "LIKE"
)

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single comparison. Unknown operators and field names
// that are not plain identifiers are ignored.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if !identifierRe.MatchString(field) {
			return db
		}
		switch cond.Operator {
		case EQ, NEQ, GT, GTE, LT, LTE:
			return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
		case IN:
			return db.Where(fmt.Sprintf("%s IN ?", field), cond.Value)
		case LIKE:
			return db.Where(fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", field), cond.Value)
		default:
			return db
		}
	})
}

// Contains matches a case-insensitive substring on any of the given fields.
func Contains(term string, fields ...string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		term = strings.TrimSpace(term)
		if term == "" {
			return db
		}
		clauses := make([]string, 0, len(fields))
		args := make([]any, 0, len(fields))
		pattern := "%" + term + "%"
		for _, field := range fields {
			if !identifierRe.MatchString(field) {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", field))
			args = append(args, pattern)
		}
		if len(clauses) == 0 {
			return db
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	})
}

type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders by the requested field when allowed, otherwise by
// newest first. The id column is always the tie breaker.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || !sort.Allow[field] || !identifierRe.MatchString(field) {
			return db.Order("created_at desc").Order("id desc")
		}
		dir := "asc"
		if sort.Desc {
			dir = "desc"
		}
		return db.Order(field + " " + dir).Order("id " + dir)
	})
}

// ApplyPagination applies keyset paging on (created_at, id) descending and
// fetches one extra row so callers can detect a following page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		pos, err := pagination.ParseToken(page.PageToken)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		if pos != nil {
			db = db.Where("((created_at < ?) OR (created_at = ? AND id < ?))", pos.CreatedAt, pos.CreatedAt, pos.ID)
		}
		return db.Limit(page.Size() + 1)
	})
}
