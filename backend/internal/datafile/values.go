package datafile

import (
	"bytes"
	"encoding/json"
)

// Values is a multi-valued property. It is written as a bare string when it
// holds exactly one distinct value and as a list otherwise, and reads either
// form back as a list.
type Values []string

// Unique returns the values with duplicates and empties removed, keeping
// first-seen order.
func (v Values) Unique() Values {
	seen := make(map[string]struct{}, len(v))
	out := make(Values, 0, len(v))
	for _, s := range v {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// First returns the first value or "".
func (v Values) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (v Values) MarshalJSON() ([]byte, error) {
	u := v.Unique()
	if len(u) == 1 {
		return json.Marshal(u[0])
	}
	return json.Marshal([]string(u))
}

func (v *Values) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Values{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(Values, 0, len(raw))
		for _, item := range raw {
			out = append(out, scalar(item))
		}
		*v = out.Unique()
		return nil
	}
	*v = Values{scalar(data)}.Unique()
	return nil
}

// scalar renders a JSON scalar as text; strings lose their quotes, numbers
// and booleans keep their literal form.
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}
