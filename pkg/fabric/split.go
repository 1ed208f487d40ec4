// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fabric

import (
	"regexp"
	"strings"
	"unicode"
)

var returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)

// SplitStatements splits a SQL batch on top-level semicolons. Quoted strings,
// quoted identifiers, comments and Postgres dollar-quoted bodies are kept
// intact. Empty statements are dropped and each statement is trimmed.
// Quotes are escaped by doubling, as in standard SQL.
func SplitStatements(sql string) []string {
	return splitStatements(sql, false)
}

// splitStatements is SplitStatements with optional MySQL-style backslash
// escapes inside string literals.
func splitStatements(sql string, backslashEscapes bool) []string {
	var (
		stmts []string
		start int
	)

	flush := func(end int) {
		stmt := strings.TrimSpace(sql[start:end])
		if stmt != "" && !onlyComments(stmt) {
			stmts = append(stmts, stmt)
		}
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c, backslashEscapes && c != '`')
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			i = skipLine(sql, i)
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i = skipBlock(sql, i)
		case c == '$':
			if tag, ok := dollarTag(sql, i); ok {
				i = skipDollar(sql, i, tag)
			}
		case c == ';':
			flush(i)
			start = i + 1
		}
	}
	flush(len(sql))
	return stmts
}

// skipQuoted returns the index of the closing quote. Doubled quotes do not
// terminate the literal, nor do backslash escapes when enabled.
func skipQuoted(sql string, i int, quote byte, backslash bool) int {
	for j := i + 1; j < len(sql); j++ {
		switch sql[j] {
		case '\\':
			if backslash {
				j++
			}
		case quote:
			if j+1 < len(sql) && sql[j+1] == quote {
				j++
				continue
			}
			return j
		}
	}
	return len(sql) - 1
}

func skipLine(sql string, i int) int {
	if j := strings.IndexByte(sql[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(sql) - 1
}

func skipBlock(sql string, i int) int {
	if j := strings.Index(sql[i+2:], "*/"); j >= 0 {
		return i + 2 + j + 1
	}
	return len(sql) - 1
}

// dollarTag recognizes $$ and $tag$ openers.
func dollarTag(sql string, i int) (string, bool) {
	for j := i + 1; j < len(sql); j++ {
		c := rune(sql[j])
		if c == '$' {
			return sql[i : j+1], true
		}
		if !(unicode.IsLetter(c) || c == '_' || (j > i+1 && unicode.IsDigit(c))) {
			return "", false
		}
	}
	return "", false
}

func skipDollar(sql string, i int, tag string) int {
	body := i + len(tag)
	if j := strings.Index(sql[body:], tag); j >= 0 {
		return body + j + len(tag) - 1
	}
	return len(sql) - 1
}

// onlyComments reports whether stmt contains nothing but comments.
func onlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if strings.HasPrefix(line, "/*") && strings.HasSuffix(line, "*/") {
			continue
		}
		return false
	}
	return true
}

// returnsRows reports whether a statement produces a row set.
func returnsRows(stmt string) bool {
	word := strings.ToUpper(leadingKeyword(stmt))
	switch word {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "PRAGMA", "VALUES", "TABLE":
		return true
	case "WITH":
		switch main, rest := cteMainKeyword(stmt); main {
		case "INSERT", "UPDATE", "DELETE", "MERGE", "REPLACE":
			return returningClause.MatchString(rest)
		}
		return true
	}
	return returningClause.MatchString(stmt)
}

// cteMainKeyword returns the keyword of the statement that follows the
// common table expressions of a WITH query, and the text from that keyword
// on. It returns "" when no top-level statement follows the CTE list.
func cteMainKeyword(stmt string) (string, string) {
	var (
		depth     int
		afterBody bool
	)
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(stmt, i, c, false)
		case c == '-' && i+1 < len(stmt) && stmt[i+1] == '-':
			i = skipLine(stmt, i)
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			i = skipBlock(stmt, i)
		case c == '$':
			if tag, ok := dollarTag(stmt, i); ok {
				i = skipDollar(stmt, i, tag)
			}
		case c == '(':
			depth++
		case c == ')':
			depth--
			afterBody = depth == 0
		case c == ',' && depth == 0:
			afterBody = false
		case depth == 0 && isWordByte(c):
			j := i
			for j < len(stmt) && isWordByte(stmt[j]) {
				j++
			}
			word := strings.ToUpper(stmt[i:j])
			switch {
			case word == "AS" || word == "SEARCH" || word == "CYCLE":
				// Column list, or a clause trailing a recursive CTE body.
				afterBody = false
			case afterBody:
				return word, stmt[i:]
			}
			i = j - 1
		}
	}
	return "", ""
}

func isWordByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// leadingKeyword returns the first word of stmt after leading comments and
// opening parentheses.
func leadingKeyword(stmt string) string {
	s := stmt
	for {
		s = strings.TrimLeft(s, " \t\r\n(")
		switch {
		case strings.HasPrefix(s, "--"):
			if j := strings.IndexByte(s, '\n'); j >= 0 {
				s = s[j+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if j := strings.Index(s, "*/"); j >= 0 {
				s = s[j+2:]
				continue
			}
			return ""
		}
		break
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || r == '_')
	})
	if end < 0 {
		return s
	}
	return s[:end]
}
