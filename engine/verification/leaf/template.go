package leaf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/exp/slices"

	"github.com/sensorledger/integrity/model/commitment"
)

// Template is a decoded leaf template. Key order of every object is kept as
// found in the stored template so that filling and re-serializing a template
// reproduces the bytes the sensor firmware hashed.
type Template struct {
	root *object
}

// object is a JSON object that remembers the insertion order of its keys.
// Values are *object, []interface{}, string, json.Number, bool or nil.
type object struct {
	keys   []string
	values map[string]interface{}
}

func newObject() *object {
	return &object{values: make(map[string]interface{})}
}

// set replaces the value of an existing key in place or appends a new key.
func (o *object) set(key string, value interface{}) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// ParseTemplate decodes a stored leaf template. The top-level value must be an object.
func ParseTemplate(data []byte) (*Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	value, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("could not decode template: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not decode template: trailing data after top-level value")
	}
	root, ok := value.(*object)
	if !ok {
		return nil, fmt.Errorf("template is not a JSON object")
	}
	return &Template{root: root}, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := newObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.set(key, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := make([]interface{}, 0)
			for dec.More() {
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return t, nil
	}
}

// decodeRaw decodes a single raw JSON value into the template value model.
func decodeRaw(raw []byte) (interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return decodeValue(dec)
}

// Fill returns a new template with the deployment context and the reading
// written into the well-known leaf fields. The receiver is not modified.
func (t *Template) Fill(deployment commitment.Deployment, reading commitment.Reading) (*Template, error) {
	root := t.root.clone()

	temperature, err := decodeRaw(reading.Temperature)
	if err != nil {
		return nil, fmt.Errorf("invalid temperature value %q: %w", reading.Temperature, err)
	}
	humidity, err := decodeRaw(reading.Humidity)
	if err != nil {
		return nil, fmt.Errorf("invalid humidity value %q: %w", reading.Humidity, err)
	}

	root.set("blockNumber", json.Number(strconv.FormatUint(reading.BlockNumber, 10)))
	root.set("chainId", json.Number(strconv.FormatUint(deployment.ChainID, 10)))
	root.set("contractAddress", deployment.ContractAddress)

	units, err := root.child("units")
	if err != nil {
		return nil, err
	}
	units.set("temperature", deployment.TemperatureUnit)
	units.set("humidity", deployment.HumidityUnit)

	root.set("sensorSignature", reading.Signature)

	data, err := root.child("sensorData")
	if err != nil {
		return nil, err
	}
	data.set("timestamp", reading.Timestamp)
	data.set("temperature", temperature)
	data.set("humidity", humidity)

	return &Template{root: root}, nil
}

func (o *object) child(key string) (*object, error) {
	child, ok := o.values[key].(*object)
	if !ok {
		return nil, fmt.Errorf("template has no %q object", key)
	}
	return child, nil
}

func (o *object) clone() *object {
	c := &object{
		keys:   append([]string(nil), o.keys...),
		values: make(map[string]interface{}, len(o.values)),
	}
	for k, v := range o.values {
		c.values[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *object:
		return t.clone()
	case []interface{}:
		arr := make([]interface{}, len(t))
		for i, e := range t {
			arr[i] = cloneValue(e)
		}
		return arr
	}
	return v
}

// Marshal serializes the template with two-space indentation. Keys that are
// array indices are emitted first in ascending order followed by all other keys
// in insertion order, numbers use their shortest round-trip form and strings
// are not HTML-escaped.
func (t *Template) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	err := encodeValue(&buf, t.root, "")
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const indentUnit = "  "

func encodeValue(buf *bytes.Buffer, v interface{}, indent string) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		writeString(buf, t)
	case json.Number:
		n, err := formatNumber(t)
		if err != nil {
			return err
		}
		buf.WriteString(n)
	case []interface{}:
		if len(t) == 0 {
			buf.WriteString("[]")
			return nil
		}
		inner := indent + indentUnit
		buf.WriteString("[\n")
		for i, e := range t {
			if i > 0 {
				buf.WriteString(",\n")
			}
			buf.WriteString(inner)
			if err := encodeValue(buf, e, inner); err != nil {
				return err
			}
		}
		buf.WriteString("\n" + indent + "]")
	case *object:
		keys := t.orderedKeys()
		if len(keys) == 0 {
			buf.WriteString("{}")
			return nil
		}
		inner := indent + indentUnit
		buf.WriteString("{\n")
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(",\n")
			}
			buf.WriteString(inner)
			writeString(buf, k)
			buf.WriteString(": ")
			if err := encodeValue(buf, t.values[k], inner); err != nil {
				return err
			}
		}
		buf.WriteString("\n" + indent + "}")
	default:
		return fmt.Errorf("unsupported template value of type %T", v)
	}
	return nil
}

func (o *object) orderedKeys() []string {
	var (
		indices []string
		others  []string
	)
	for _, k := range o.keys {
		if isArrayIndex(k) {
			indices = append(indices, k)
			continue
		}
		others = append(others, k)
	}
	if len(indices) == 0 {
		return others
	}
	sortIndices(indices)
	return append(indices, others...)
}

func isArrayIndex(key string) bool {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	return err == nil && n < math.MaxUint32
}

func sortIndices(indices []string) {
	slices.SortStableFunc(indices, func(a, b string) int {
		x, _ := strconv.ParseUint(a, 10, 32)
		y, _ := strconv.ParseUint(b, 10, 32)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	})
}

// formatNumber renders a number the way ECMAScript Number.prototype.toString does.
func formatNumber(n json.Number) (string, error) {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", n, err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null", nil
	}
	if f == 0 {
		return "0", nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	digits := strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + string(sign) + digits, nil
}

const hexDigits = "0123456789abcdef"

// writeString quotes s, escaping only what JSON requires.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			buf.WriteString("\ufffd")
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[r>>4])
			buf.WriteByte(hexDigits[r&0xf])
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
