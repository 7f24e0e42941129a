package toon

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const indentUnit = "  "

var (
	safeKey     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	numericLike = regexp.MustCompile(`^-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?$`)
)

// NativeEncoder walks the JSON document in order and writes TOON with comma
// delimiters and two-space indentation.
type NativeEncoder struct{}

func (NativeEncoder) Name() string { return "native" }

func (NativeEncoder) Encode(_ context.Context, minJSON []byte) ([]byte, error) {
	if !gjson.ValidBytes(minJSON) {
		return nil, &EncodingError{Encoder: "native", Err: errors.New("invalid JSON input")}
	}

	root := gjson.ParseBytes(minJSON)
	w := &writer{}
	switch {
	case root.IsObject():
		w.object(root, 0)
	case root.IsArray():
		w.array("", root, 0)
	default:
		w.line(0, primitive(root))
	}
	return []byte(strings.Join(w.lines, "\n")), nil
}

type writer struct {
	lines []string
}

func (w *writer) line(depth int, s string) {
	w.lines = append(w.lines, strings.Repeat(indentUnit, depth)+s)
}

func (w *writer) object(obj gjson.Result, depth int) {
	obj.ForEach(func(k, v gjson.Result) bool {
		w.field(encodeKey(k.String()), v, depth)
		return true
	})
}

func (w *writer) field(key string, v gjson.Result, depth int) {
	switch {
	case v.IsObject():
		w.line(depth, key+":")
		w.object(v, depth+1)
	case v.IsArray():
		w.array(key, v, depth)
	default:
		w.line(depth, key+": "+primitive(v))
	}
}

func (w *writer) array(key string, arr gjson.Result, depth int) {
	items := arr.Array()
	header := fmt.Sprintf("%s[%d]", key, len(items))

	if len(items) == 0 {
		w.line(depth, header+":")
		return
	}

	if allPrimitive(items) {
		values := make([]string, len(items))
		for i, it := range items {
			values[i] = primitive(it)
		}
		w.line(depth, header+": "+strings.Join(values, ","))
		return
	}

	if fields, rows, ok := tabular(items); ok {
		keys := make([]string, len(fields))
		for i, f := range fields {
			keys[i] = encodeKey(f)
		}
		w.line(depth, header+"{"+strings.Join(keys, ",")+"}:")
		for _, row := range rows {
			w.line(depth+1, strings.Join(row, ","))
		}
		return
	}

	w.line(depth, header+":")
	for _, it := range items {
		w.listItem(it, depth+1)
	}
}

// listItem writes one "- " entry at depth. Structured items are written one
// level deeper and their first line is pulled back onto the hyphen.
func (w *writer) listItem(it gjson.Result, depth int) {
	if !it.IsObject() && !it.IsArray() {
		w.line(depth, "- "+primitive(it))
		return
	}

	start := len(w.lines)
	if it.IsObject() {
		w.object(it, depth+1)
	} else {
		w.array("", it, depth+1)
	}

	if len(w.lines) == start {
		w.line(depth, "-")
		return
	}
	first := strings.TrimPrefix(w.lines[start], strings.Repeat(indentUnit, depth+1))
	w.lines[start] = strings.Repeat(indentUnit, depth) + "- " + first
}

func allPrimitive(items []gjson.Result) bool {
	for _, it := range items {
		if it.IsObject() || it.IsArray() {
			return false
		}
	}
	return true
}

// tabular reports whether items are objects sharing one key set with only
// primitive values, and if so returns the field order and encoded rows.
func tabular(items []gjson.Result) ([]string, [][]string, bool) {
	var fields []string
	rows := make([][]string, 0, len(items))

	for i, it := range items {
		if !it.IsObject() {
			return nil, nil, false
		}

		values := map[string]string{}
		var order []string
		ok := true
		it.ForEach(func(k, v gjson.Result) bool {
			if v.IsObject() || v.IsArray() {
				ok = false
				return false
			}
			order = append(order, k.String())
			values[k.String()] = primitive(v)
			return true
		})
		if !ok || len(order) == 0 {
			return nil, nil, false
		}

		if i == 0 {
			fields = order
		} else if len(order) != len(fields) {
			return nil, nil, false
		}

		row := make([]string, len(fields))
		for j, f := range fields {
			v, present := values[f]
			if !present {
				return nil, nil, false
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return fields, rows, true
}

func primitive(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return "null"
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Number:
		return formatNumber(v.Raw)
	default:
		return encodeString(v.String())
	}
}

func formatNumber(raw string) string {
	if !strings.ContainsAny(raw, "eE") && raw != "-0" {
		return raw
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func encodeKey(k string) string {
	if safeKey.MatchString(k) {
		return k
	}
	return quote(k)
}

func encodeString(s string) string {
	if needsQuotes(s) {
		return quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" || s != strings.TrimSpace(s) {
		return true
	}
	switch s {
	case "true", "false", "null":
		return true
	}
	if numericLike.MatchString(s) || strings.HasPrefix(s, "-") {
		return true
	}
	return strings.ContainsAny(s, ":\"\\[]{},\n\r\t")
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}
