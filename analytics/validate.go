package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// FieldError describes one field of a payload that has the wrong shape.
type FieldError struct {
	// Path is the dotted location of the field, e.g. "marketPrice.trend[2].price".
	Path string

	// Want is the expected kind: "object", "array", "number", "integer" or
	// "string".
	Want string

	// Got is the kind that was found, or "missing".
	Got string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Path, e.Want, e.Got)
}

// ErrNotObject is returned when the payload root is not an object.
var ErrNotObject = errors.New("analytics payload must be an object")

// Validate checks an untyped analytics document and converts it into a
// [Dashboard].
//
// Every field problem is reported; the returned error joins one [FieldError]
// per bad field. A payload is either accepted whole or rejected.
func Validate(raw any) (Dashboard, error) {
	root, ok := raw.(map[string]any)
	if !ok {
		return Dashboard{}, fmt.Errorf("%w, got %s", ErrNotObject, kindOf(raw))
	}

	v := &walker{}
	var d Dashboard

	d.TotalCreditsOwned = v.number(root, "", "totalCreditsOwned")

	if traded := v.object(root, "", "creditsTraded"); traded != nil {
		d.CreditsTraded.Today = v.number(traded, "creditsTraded", "today")
		d.CreditsTraded.ThisWeek = v.number(traded, "creditsTraded", "thisWeek")
	}

	if price := v.object(root, "", "marketPrice"); price != nil {
		d.MarketPrice.Current = v.number(price, "marketPrice", "current")
		d.MarketPrice.Change24h = formatNumber(v.number(price, "marketPrice", "change24h"))

		if trend, ok := v.array(price, "marketPrice", "trend"); ok {
			d.MarketPriceTrend = make([]PricePoint, 0, len(trend))
			for i, item := range trend {
				path := fmt.Sprintf("marketPrice.trend[%d]", i)
				point, ok := item.(map[string]any)
				if !ok {
					v.fail(path, "object", kindOf(item))
					continue
				}
				d.MarketPriceTrend = append(d.MarketPriceTrend, PricePoint{
					Date:  v.str(point, path, "date"),
					Price: v.number(point, path, "price"),
				})
			}
		}
	}

	if offset := v.object(root, "", "emissionsOffset"); offset != nil {
		d.EmissionsOffset.Total = v.number(offset, "emissionsOffset", "total")
		d.EmissionsOffset.MonthlyProgress = v.number(offset, "emissionsOffset", "thisMonth")
		d.EmissionsOffset.Target = v.number(offset, "emissionsOffset", "target")
	}

	// additional_metrics is optional, but checked when the server sends it
	if extra, present := root["additional_metrics"]; present && extra != nil {
		m, ok := extra.(map[string]any)
		if !ok {
			v.fail("additional_metrics", "object", kindOf(extra))
		} else {
			d.AdditionalMetrics = &AdditionalMetrics{
				BatchesProduced:   v.count(m, "additional_metrics", "batches_produced"),
				TotalTransactions: v.count(m, "additional_metrics", "total_transactions"),
				ActiveOrders:      v.count(m, "additional_metrics", "active_orders"),
			}
		}
	}

	if len(v.errs) > 0 {
		return Dashboard{}, errors.Join(v.errs...)
	}
	return d, nil
}

// walker accumulates field errors while reading a document.
type walker struct {
	errs []error
}

func (w *walker) fail(path, want, got string) {
	w.errs = append(w.errs, &FieldError{Path: path, Want: want, Got: got})
}

func (w *walker) lookup(obj map[string]any, parent, key, want string) (any, string, bool) {
	path := joinPath(parent, key)
	value, ok := obj[key]
	if !ok {
		w.fail(path, want, "missing")
		return nil, path, false
	}
	return value, path, true
}

func (w *walker) object(obj map[string]any, parent, key string) map[string]any {
	value, path, ok := w.lookup(obj, parent, key, "object")
	if !ok {
		return nil
	}
	m, ok := value.(map[string]any)
	if !ok {
		w.fail(path, "object", kindOf(value))
		return nil
	}
	return m
}

func (w *walker) array(obj map[string]any, parent, key string) ([]any, bool) {
	value, path, ok := w.lookup(obj, parent, key, "array")
	if !ok {
		return nil, false
	}
	arr, ok := value.([]any)
	if !ok {
		w.fail(path, "array", kindOf(value))
		return nil, false
	}
	return arr, true
}

func (w *walker) number(obj map[string]any, parent, key string) float64 {
	value, path, ok := w.lookup(obj, parent, key, "number")
	if !ok {
		return 0
	}
	f, ok := toFloat(value)
	if !ok {
		w.fail(path, "number", kindOf(value))
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		w.fail(path, "finite number", strconv.FormatFloat(f, 'g', -1, 64))
		return 0
	}
	return f
}

// maxCount is the largest count a float64 still holds exactly.
const maxCount = 1 << 53

// count reads a non-negative whole number. Fractions, negatives and values
// past maxCount are rejected rather than truncated.
func (w *walker) count(obj map[string]any, parent, key string) int {
	value, path, ok := w.lookup(obj, parent, key, "integer")
	if !ok {
		return 0
	}
	f, ok := toFloat(value)
	if !ok {
		w.fail(path, "integer", kindOf(value))
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 || f > maxCount {
		w.fail(path, "integer", strconv.FormatFloat(f, 'g', -1, 64))
		return 0
	}
	return int(f)
}

func (w *walker) str(obj map[string]any, parent, key string) string {
	value, path, ok := w.lookup(obj, parent, key, "string")
	if !ok {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		w.fail(path, "string", kindOf(value))
		return ""
	}
	return s
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// toFloat accepts every numeric kind a JSON or CBOR decoder may produce.
func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	}
	if _, ok := toFloat(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

// formatNumber renders a number the way the API's clients print it:
// shortest representation, no exponent for ordinary magnitudes.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
