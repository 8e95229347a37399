package qparser

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

const (
	BooleanParserName = "boolean"
	TermsParserName   = "terms"
)

// booleanParser understands AND / OR / NOT, +term / -term prefixes,
// field:value filters and quoted phrases. Any other whitespace-separated
// field is one term, so a phrase joined by the rewrite step stays a single
// term here.
type booleanParser struct {
	query       string
	params      url.Values
	localParams url.Values
	req         *Request
	flat        bool
}

func newBooleanParser(query string, params, localParams url.Values, req *Request) (Parser, error) {
	return &booleanParser{query: query, params: params, localParams: localParams, req: req}, nil
}

// newTermsParser ignores operators and ORs every term together.
func newTermsParser(query string, params, localParams url.Values, req *Request) (Parser, error) {
	return &booleanParser{query: query, params: params, localParams: localParams, req: req, flat: true}, nil
}

func (p *booleanParser) name() string {
	if p.flat {
		return TermsParserName
	}
	return BooleanParserName
}

func (p *booleanParser) Parse(ctx context.Context) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan := &Plan{
		Parser:       p.name(),
		RawQuery:     p.query,
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         p.defaultOperator(),
	}
	if p.flat {
		plan.Type = QueryOR
	}
	if rows := p.param("rows"); rows != "" {
		if n, err := strconv.Atoi(rows); err == nil && n > 0 {
			plan.Rows = n
		}
	}
	if strings.TrimSpace(p.query) == "" {
		return plan, nil
	}

	excludeNext := false
	for _, field := range splitFields(p.query) {
		if !p.flat {
			switch strings.ToUpper(field) {
			case "AND", "&&":
				plan.Type = QueryAND
				continue
			case "OR", "||":
				plan.Type = QueryOR
				continue
			case "NOT", "!":
				excludeNext = true
				continue
			}
		}

		exclude := excludeNext
		excludeNext = false
		switch field[0] {
		case '-':
			exclude = !p.flat
			field = field[1:]
		case '+':
			field = field[1:]
		}

		if quoted, ok := unquote(field); ok {
			if quoted != "" {
				plan.Phrases = append(plan.Phrases, strings.ToLower(quoted))
			}
			continue
		}
		if name, value, ok := fieldValue(field); ok {
			if plan.Filters == nil {
				plan.Filters = make(map[string]string)
			}
			plan.Filters[name] = value
			continue
		}

		term := normalizeTerm(field)
		if term == "" {
			continue
		}
		if exclude {
			plan.ExcludeTerms = append(plan.ExcludeTerms, term)
		} else {
			plan.Terms = append(plan.Terms, term)
		}
	}
	return plan, nil
}

// defaultOperator honours q.op from local params first, then request params.
func (p *booleanParser) defaultOperator() QueryType {
	if strings.EqualFold(p.param("q.op"), "OR") {
		return QueryOR
	}
	return QueryAND
}

func (p *booleanParser) param(key string) string {
	if v := p.localParams.Get(key); v != "" {
		return v
	}
	return p.params.Get(key)
}

// splitFields splits on whitespace, keeping quoted sections together.
func splitFields(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

func unquote(field string) (string, bool) {
	if len(field) < 1 || field[0] != '"' {
		return "", false
	}
	return strings.TrimSpace(strings.Trim(field, `"`)), true
}

func fieldValue(field string) (string, string, bool) {
	name, value, ok := strings.Cut(field, ":")
	if !ok || name == "" || value == "" {
		return "", "", false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", "", false
		}
	}
	return name, strings.Trim(value, `"`), true
}

// normalizeTerm lower-cases a term and strips grouping punctuation around it.
func normalizeTerm(field string) string {
	return strings.ToLower(strings.Trim(field, "()[]{},;"))
}
