package meta

import (
	"fmt"
	"strconv"
	"strings"
)

func formatValue(v Value) string {
	switch x := v.V.(type) {
	case Value:
		return formatValue(x)
	case *Value:
		if x == nil {
			return "null"
		}
		return formatValue(*x)
	case []Value:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return strconv.Quote(x)
	case nil:
		return "null"
	}
	return fmt.Sprint(v.V)
}
