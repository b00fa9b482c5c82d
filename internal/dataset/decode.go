package dataset

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// NullSentinel is the literal token IMDb uses for absent values.
const NullSentinel = `\N`

// listSeparator splits StringList fields.
const listSeparator = ","

// Decode parses the raw TSV fields of one row according to the descriptor and
// returns one typed value per column: string, int64, float64, bool, []string,
// or nil for a null field. It fails when the field count does not match the
// descriptor or when a non-null numeric/boolean field cannot be parsed.
//
// The null sentinel takes precedence over type parsing. A sentinel in a
// non-nullable column decodes to the kind's zero value; this repairs the rare
// rows where IMDb emits \N against its own schema.
//
// Decode is pure: it never touches storage and is safe for concurrent use.
func (d Descriptor) Decode(fields []string) ([]any, error) {
	if len(fields) != len(d.Columns) {
		return nil, fmt.Errorf("row has %d fields, descriptor %s has %d columns", len(fields), d.Dataset, len(d.Columns))
	}
	values := make([]any, len(fields))
	for i, col := range d.Columns {
		v, err := decodeField(col, fields[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// DecodeLine splits one raw TSV line on tabs and decodes it.
func (d Descriptor) DecodeLine(line string) ([]any, error) {
	return d.Decode(strings.Split(line, "\t"))
}

func decodeField(col Column, raw string) (any, error) {
	if raw == NullSentinel {
		if col.Nullable {
			return nil, nil
		}
		v := zeroValue(col.Kind)
		log.Printf("dataset: column %q of kind %s should not be null, using %v instead", col.Name, col.Kind, v)
		return v, nil
	}
	switch col.Kind {
	case String:
		return raw, nil
	case Integer:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: cannot parse integer from %q", col.Name, raw)
		}
		return n, nil
	case Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: cannot parse float from %q", col.Name, raw)
		}
		return f, nil
	case Boolean:
		switch raw {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
		return nil, fmt.Errorf("column %q: boolean must be 0 or 1 but is %q", col.Name, raw)
	case StringList:
		if raw == "" {
			return []string{}, nil
		}
		return strings.Split(raw, listSeparator), nil
	}
	return nil, fmt.Errorf("column %q: unknown kind %v", col.Name, col.Kind)
}

func zeroValue(k Kind) any {
	switch k {
	case Integer:
		return int64(0)
	case Float:
		return float64(0)
	case Boolean:
		return false
	case StringList:
		return []string{}
	}
	return ""
}

// Encode renders a decoded value back into its TSV text form. It is the
// inverse of Decode for scalar fields: Encode(Decode(x)) == x for every
// valid non-null scalar input.
func Encode(v any) string {
	switch t := v.(type) {
	case nil:
		return NullSentinel
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case []string:
		return strings.Join(t, listSeparator)
	}
	return fmt.Sprint(v)
}

// StorageValue maps a decoded value to the representation written into a
// staging table: lists are flattened back to their comma-joined text so the
// staging schema stays a near-verbatim copy of the source file.
func StorageValue(v any) any {
	if list, ok := v.([]string); ok {
		return strings.Join(list, listSeparator)
	}
	return v
}
