// Package query builds Service Layer query strings.
//
// Only spaces and single quotes in filter text are escaped; $, parentheses and
// commas must reach the backend verbatim.
package query

import (
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var escaper = strings.NewReplacer(" ", "%20", "'", "%27")

// BuildURL appends the select clause and the optional filter, skip and top clauses
// to base. An empty filter and zero skip or top are left out.
func BuildURL(base, sel, filter string, skip, top int) string {
	return BuildPageURL(base, sel, filter, "", skip, top)
}

// BuildPageURL is BuildURL with an $orderby clause on orderBy, which keeps
// $skip paging stable. An empty orderBy is left out.
func BuildPageURL(base, sel, filter, orderBy string, skip, top int) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("?")
	b.WriteString(sel)
	if filter != "" {
		b.WriteString("&")
		b.WriteString(filter)
	}
	if orderBy != "" {
		b.WriteString("&$orderby=")
		b.WriteString(orderBy)
	}
	if skip > 0 {
		b.WriteString("&$skip=")
		b.WriteString(strconv.Itoa(skip))
	}
	if top > 0 {
		b.WriteString("&$top=")
		b.WriteString(strconv.Itoa(top))
	}
	return b.String()
}

// Select renders a $select clause
func Select(fields ...string) string {
	return "$select=" + strings.Join(fields, ",")
}

// Filter renders an escaped $filter clause, or an empty string for an empty expression
func Filter(expr string) string {
	if expr == "" {
		return ""
	}
	return "$filter=" + Escape(expr)
}

// Escape encodes the characters the backend's filter grammar cannot take raw
func Escape(filter string) string {
	return escaper.Replace(filter)
}

// UpdatedAfter renders a predicate matching records modified after t.
// The backend keeps the modification date and time of day in separate fields.
func UpdatedAfter(t time.Time) string {
	d := t.Format(dateLayout)
	return "(UpdateDate gt " + d + " or (UpdateDate eq " + d + " and UpdateTime gt " + t.Format(timeLayout) + "))"
}

// And joins the non-empty clauses with the and operator
func And(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " and ")
}

// Eq renders an equality comparison against a string literal
func Eq(field, value string) string {
	return field + " eq " + Literal(value)
}

// Ge renders a greater-or-equal comparison against a string literal
func Ge(field, value string) string {
	return field + " ge " + Literal(value)
}

// Literal quotes a string literal, doubling embedded quotes
func Literal(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// ByKey addresses a single entity by its numeric key, e.g. BlanketAgreements(7)
func ByKey(entity string, key int) string {
	return entity + "(" + strconv.Itoa(key) + ")"
}

// ByCode addresses a single entity by its string key, e.g. BusinessPartners('C1')
func ByCode(entity, code string) string {
	return entity + "(" + Literal(code) + ")"
}
