package psr

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Top-level keys of the stored document. Downstream readers depend on them verbatim.
const (
	KeyTimesheet = "TIMESHEET"
	KeyHours     = "HOURS"
	KeyCost      = "COST"
	KeyCostToGo  = "COST TO GO"
)

// Record is one node of the rollup. Field order is the serialized order.
type Record struct {
	ID                int     `json:"id"`
	Inkrement         string  `json:"inkrement"`
	BaselineBudget    float64 `json:"baseline_budget"`
	LastMonthActuals  float64 `json:"last_month_actuals"`
	Actuals           float64 `json:"actuals"`
	Budget            float64 `json:"budget"`
	Forecast          float64 `json:"forecast"`
	Prognosis         float64 `json:"prognosis"`
	Balance           float64 `json:"balance"`
	BalancePercentage float64 `json:"balance_percentage"`
	Rest              float64 `json:"rest"`
	RestPercentage    float64 `json:"rest_percentage"`
}

// Entry is a record under its sub-department or category code.
type Entry struct {
	Code   string
	Record Record
}

// Group holds the entries of one department.
type Group struct {
	Department string
	Entries    []Entry
}

// Document is the nested snapshot rollup:
//
//	{"TIMESHEET": {"HOURS": {dept: {code: record}}, "COST": {...}},
//	 "COST TO GO": {"COST": {code: record}}}
//
// Departments, codes and categories keep the order they were assembled in.
// Value writes that order as text; a column type that normalizes JSON would lose it.
type Document struct {
	Hours    []Group
	Cost     []Group
	CostToGo []Entry
}

// LaborCostActuals returns TIMESHEET.COST[department][code].actuals.
func (d *Document) LaborCostActuals(department, code string) (float64, bool) {
	if d == nil {
		return 0, false
	}
	for _, g := range d.Cost {
		if g.Department != department {
			continue
		}
		for _, e := range g.Entries {
			if e.Code == code {
				return e.Record.Actuals, true
			}
		}
	}
	return 0, false
}

// MaterialActuals returns COST TO GO.COST[code].actuals.
func (d *Document) MaterialActuals(code string) (float64, bool) {
	if d == nil {
		return 0, false
	}
	for _, e := range d.CostToGo {
		if e.Code == code {
			return e.Record.Actuals, true
		}
	}
	return 0, false
}

func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"` + KeyTimesheet + `":{"` + KeyHours + `":`)
	if err := writeGroups(&buf, d.Hours); err != nil {
		return nil, err
	}
	buf.WriteString(`,"` + KeyCost + `":`)
	if err := writeGroups(&buf, d.Cost); err != nil {
		return nil, err
	}
	buf.WriteString(`},"` + KeyCostToGo + `":{"` + KeyCost + `":`)
	if err := writeEntries(&buf, d.CostToGo); err != nil {
		return nil, err
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

func writeGroups(buf *bytes.Buffer, groups []Group) error {
	buf.WriteByte('{')
	for i, g := range groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(buf, g.Department); err != nil {
			return err
		}
		if err := writeEntries(buf, g.Entries); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeEntries(buf *bytes.Buffer, entries []Entry) error {
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(buf, e.Code); err != nil {
			return err
		}
		b, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("record %s: %w", e.Code, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	*d = Document{}
	dec := json.NewDecoder(bytes.NewReader(data))
	return readObject(dec, func(key string) error {
		switch key {
		case KeyTimesheet:
			return readObject(dec, func(axis string) error {
				switch axis {
				case KeyHours:
					groups, err := readGroups(dec)
					d.Hours = groups
					return err
				case KeyCost:
					groups, err := readGroups(dec)
					d.Cost = groups
					return err
				}
				return skipValue(dec)
			})
		case KeyCostToGo:
			return readObject(dec, func(axis string) error {
				if axis != KeyCost {
					return skipValue(dec)
				}
				entries, err := readEntries(dec)
				d.CostToGo = entries
				return err
			})
		}
		return skipValue(dec)
	})
}

func readGroups(dec *json.Decoder) ([]Group, error) {
	groups := []Group{}
	err := readObject(dec, func(dept string) error {
		entries, err := readEntries(dec)
		if err != nil {
			return err
		}
		groups = append(groups, Group{Department: dept, Entries: entries})
		return nil
	})
	return groups, err
}

func readEntries(dec *json.Decoder) ([]Entry, error) {
	entries := []Entry{}
	err := readObject(dec, func(code string) error {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("record %s: %w", code, err)
		}
		entries = append(entries, Entry{Code: code, Record: r})
		return nil
	})
	return entries, err
}

// readObject walks one JSON object in document order, calling fn with the decoder
// positioned on each value.
func readObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("psr document: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("psr document: expected key, got %v", tok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	return dec.Decode(&raw)
}

// Value stores the document as JSON text.
func (d Document) Value() (driver.Value, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *Document) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Document{}
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	}
	return errors.New("psr document: unsupported scan type")
}

// Groups serializes one axis of the TIMESHEET section on its own.
type Groups []Group

func (g Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGroups(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Entries serializes the COST TO GO categories on their own.
type Entries []Entry

func (e Entries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeEntries(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
