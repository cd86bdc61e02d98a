package stakeout

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Extraction holds the outcome of running an [Extractor] over a response body.
//
// Found reports whether the extractor located a candidate value. When Found
// is false, Value is empty. Malformed or absent content is a normal
// Found=false outcome, never an error.
type Extraction struct {
	// Found reports whether a candidate value was located.
	Found bool

	// Value is the canonical string form of the located value.
	// Empty when Found is false.
	Value string
}

// Extractor is a function type that locates a candidate value in a fetched
// response body.
//
// Extractor follows functional programming principles: it is a pure function
// where the same inputs always produce the same output. This makes extractors
// easy to test, compose, and reason about. Extractors never return errors;
// content that cannot be parsed or that contains no candidate yields
// Found=false.
//
// Parameters:
//   - body: The HTTP response body as bytes
//   - contentType: The response Content-Type header (may be empty)
//
// Two built-in extractors are provided: [JSONLocatorExtractor] and
// [HTMLTextExtractor]. Adding a new search mode means adding a new
// constructor, not editing existing ones.
//
// # Panic Safety
//
// Extractor functions are called within a panic recovery boundary inside the
// polling scheduler. If an extractor panics, the cycle is recorded as a
// not-found result with an error carrying a correlation ID, and the full
// stack trace is logged.
type Extractor func(body []byte, contentType string) Extraction

// ExtractorForQuery returns the [Extractor] matching the query's mode.
func ExtractorForQuery(q Query) Extractor {
	if q.Mode() == ModeHTML {
		return HTMLTextExtractor(q.TargetValue())
	}
	return JSONLocatorExtractor(q.Locator())
}

// JSONLocatorExtractor returns an [Extractor] that evaluates a locator
// expression against a JSON document.
//
// The locator accepts a leading "$." prefix, bracket indices, quoted keys,
// and wildcards:
//
//	$.data.status
//	items[0].price
//	items[*].name
//	services['api'].health
//
// Malformed JSON and locators that select nothing both yield Found=false.
// When a wildcard locator selects multiple values, the first in document
// order wins; ambiguous locators are a configuration concern, not an
// extraction error.
//
// Located values are canonicalized to strings: strings and integer literals
// verbatim, other numbers in their shortest decimal form, booleans as
// "true"/"false", null as "null", and objects/arrays as compact JSON.
//
// Example:
//
//	// For response: {"data": {"status": "available"}}
//	extractor := stakeout.JSONLocatorExtractor("$.data.status")
func JSONLocatorExtractor(locator string) Extractor {
	path := normalizeLocator(locator)
	wildcard := strings.Contains(path, "#")

	return func(body []byte, _ string) Extraction {
		if !gjson.ValidBytes(body) {
			return Extraction{}
		}

		res := gjson.GetBytes(body, path)
		if !res.Exists() {
			return Extraction{}
		}

		// wildcard queries yield an array of matches in document order
		if wildcard && res.IsArray() {
			matches := res.Array()
			if len(matches) == 0 {
				return Extraction{}
			}
			res = matches[0]
		}

		return Extraction{Found: true, Value: canonicalValue(res)}
	}
}

// normalizeLocator converts a JSONPath-style locator to gjson path syntax.
//
// Handled forms: a leading "$" or "$." is stripped, "[N]" becomes ".N",
// "['key']" and `["key"]` become ".key", and "[*]" or ".*" become ".#"
// (gjson's query-all segment).
func normalizeLocator(locator string) string {
	s := strings.TrimSpace(locator)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, ".")

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '[' {
			b.WriteByte(c)
			continue
		}

		end := strings.IndexByte(s[i:], ']')
		if end < 0 {
			// unterminated bracket: keep literal, gjson will just not match
			b.WriteString(s[i:])
			break
		}

		inner := s[i+1 : i+end]
		inner = strings.Trim(inner, `'"`)
		if inner == "*" {
			inner = "#"
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(inner)
		i += end
	}

	path := strings.ReplaceAll(b.String(), "*", "#")

	// a trailing wildcard means "all elements"; first in document order is
	// element zero (a trailing # in gjson is the array count instead)
	if strings.HasSuffix(path, "#") {
		path = path[:len(path)-1] + "0"
	}
	return path
}

// canonicalValue renders a gjson result in its canonical string form.
func canonicalValue(res gjson.Result) string {
	switch res.Type {
	case gjson.String:
		return res.Str
	case gjson.Number:
		// integer literals pass through verbatim: float64 rounds values
		// beyond 2^53 (64-bit IDs), which would break exact matching
		if !strings.ContainsAny(res.Raw, ".eE") {
			return res.Raw
		}
		return strconv.FormatFloat(res.Num, 'f', -1, 64)
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Null:
		return "null"
	default:
		// object or array: compact JSON
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(res.Raw)); err != nil {
			return res.Raw
		}
		return buf.String()
	}
}

// HTMLTextExtractor returns an [Extractor] that searches the rendered text
// of an HTML document for a case-sensitive substring.
//
// Script, style, and noscript elements are dropped before the text is
// flattened, and runs of whitespace collapse to single spaces, so the search
// sees the page roughly as a reader would. Malformed markup is tolerated;
// the parse is best-effort and never fails.
//
// Presence of the text yields Found=true with the text itself as the value.
//
// Example:
//
//	// Matches <div>Status: In Stock</div>
//	extractor := stakeout.HTMLTextExtractor("In Stock")
func HTMLTextExtractor(text string) Extractor {
	return func(body []byte, _ string) Extraction {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return Extraction{}
		}

		doc.Find("script, style, noscript").Remove()
		flat := strings.Join(strings.Fields(doc.Text()), " ")

		if strings.Contains(flat, text) {
			return Extraction{Found: true, Value: text}
		}
		return Extraction{}
	}
}
