package registration

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QuestionMatrix is the element type whose answers are row -> value objects.
const QuestionMatrix = "matrix"

// FormSpec is the question form attached to a ticket type. Only the fields
// the backend reads are modelled; the raw form is what buyers receive.
type FormSpec struct {
	Pages []FormPage `json:"pages"`
}

type FormPage struct {
	Name     string     `json:"name"`
	Elements []Question `json:"elements"`
}

// Question is one form element.
type Question struct {
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	IsRequired bool     `json:"isRequired,omitempty"`
	Choices    []Choice `json:"-"`
	Rows       []Choice `json:"-"`
	Columns    []Choice `json:"-"`
}

// Choice is a value/text pair. Forms may list plain strings instead of
// objects, in which case value and text are the same.
type Choice struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

func (c *Choice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		v, err := scalarJSON(b)
		if err != nil {
			return err
		}
		c.Value, c.Text = v, v
		return nil
	}
	var obj struct {
		Value json.RawMessage `json:"value"`
		Text  string          `json:"text"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	v, err := scalarJSON(obj.Value)
	if err != nil {
		return err
	}
	c.Value = v
	c.Text = obj.Text
	if c.Text == "" {
		c.Text = c.Value
	}
	return nil
}

func (q *Question) UnmarshalJSON(b []byte) error {
	type plain Question
	var raw struct {
		plain
		Choices []Choice `json:"choices"`
		Rows    []Choice `json:"rows"`
		Columns []Choice `json:"columns"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*q = Question(raw.plain)
	q.Choices = raw.Choices
	q.Rows = raw.Rows
	q.Columns = raw.Columns
	return nil
}

// ParseForm decodes a stored question form. An empty form is valid.
func ParseForm(raw json.RawMessage) (FormSpec, error) {
	var f FormSpec
	if len(raw) == 0 || string(raw) == "null" {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return FormSpec{}, fmt.Errorf("parse question form: %w", err)
	}
	return f, nil
}

// Question finds a question by its name across all pages.
func (f FormSpec) Question(name string) (Question, bool) {
	for _, p := range f.Pages {
		for _, q := range p.Elements {
			if q.Name == name {
				return q, true
			}
		}
	}
	return Question{}, false
}

// scalarJSON renders a JSON string, number, bool or null as text.
func scalarJSON(b []byte) (string, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return "", nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	return scalarString(tok)
}
