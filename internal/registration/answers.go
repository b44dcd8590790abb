package registration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RowAnswer is the value chosen for one row of a matrix question.
type RowAnswer struct {
	Row   string
	Value string
}

// Answer is the reply to a single custom question: a scalar, a matrix
// (row -> value) or a list of choices. Exactly one form is set.
type Answer struct {
	Value  string
	Rows   []RowAnswer
	Values []string

	kind answerKind
}

type answerKind uint8

const (
	kindScalar answerKind = iota
	kindMatrix
	kindList
)

// Scalar builds a plain string answer.
func Scalar(v string) Answer { return Answer{Value: v} }

// Matrix builds a matrix answer from row/value pairs, in order.
func Matrix(rows ...RowAnswer) Answer { return Answer{Rows: rows, kind: kindMatrix} }

// List builds a multiple-choice answer.
func List(values ...string) Answer { return Answer{Values: values, kind: kindList} }

func (a Answer) IsMatrix() bool { return a.kind == kindMatrix }

func (a Answer) IsList() bool { return a.kind == kindList }

// Row returns the value given for a matrix row.
func (a Answer) Row(row string) (string, bool) {
	for _, r := range a.Rows {
		if r.Row == row {
			return r.Value, true
		}
	}
	return "", false
}

// MarshalJSON writes scalars as strings, matrices as objects (row order
// preserved) and lists as arrays.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case kindMatrix:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, r := range a.Rows {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(r.Row)
			v, _ := json.Marshal(r.Value)
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case kindList:
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	default:
		return json.Marshal(a.Value)
	}
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeAnswer(dec)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Answers is an insertion-ordered mapping of question key to answer.
// The zero value is an empty mapping ready to use.
type Answers struct {
	keys   []string
	values map[string]Answer
}

// Set stores v under key. Re-setting a key keeps its original position.
func (a *Answers) Set(key string, v Answer) {
	if a.values == nil {
		a.values = make(map[string]Answer)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
}

func (a Answers) Get(key string) (Answer, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Keys returns question keys in insertion order.
func (a Answers) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

func (a Answers) Len() int { return len(a.keys) }

func (a Answers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := a.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Answers) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = Answers{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("answers must be a JSON object")
	}

	var out Answers
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		v, err := decodeAnswer(dec)
		if err != nil {
			return fmt.Errorf("answer %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

// ParseAnswers decodes the stored textual form written by MarshalJSON.
func ParseAnswers(s string) (Answers, error) {
	var a Answers
	if s == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return Answers{}, err
	}
	return a, nil
}

func decodeAnswer(dec *json.Decoder) (Answer, error) {
	tok, err := dec.Token()
	if err != nil {
		return Answer{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			ans := Answer{kind: kindMatrix}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Answer{}, err
				}
				row, _ := kt.(string)
				vt, err := dec.Token()
				if err != nil {
					return Answer{}, err
				}
				val, err := scalarString(vt)
				if err != nil {
					return Answer{}, fmt.Errorf("row %q: %w", row, err)
				}
				ans.Rows = append(ans.Rows, RowAnswer{Row: row, Value: val})
			}
			_, err := dec.Token()
			return ans, err
		case '[':
			ans := Answer{kind: kindList, Values: []string{}}
			for dec.More() {
				vt, err := dec.Token()
				if err != nil {
					return Answer{}, err
				}
				val, err := scalarString(vt)
				if err != nil {
					return Answer{}, err
				}
				ans.Values = append(ans.Values, val)
			}
			_, err := dec.Token()
			return ans, err
		}
		return Answer{}, fmt.Errorf("unexpected %v", t)
	default:
		val, err := scalarString(tok)
		if err != nil {
			return Answer{}, err
		}
		return Scalar(val), nil
	}
}

func scalarString(tok json.Token) (string, error) {
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", nil
	case json.Delim:
		return "", errors.New("nested values are not supported")
	}
	return "", fmt.Errorf("unsupported value %v", tok)
}
