package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type DepartmentName string

const (
	DepartmentProjectManagement      DepartmentName = "PROJECT_MANAGEMENT"
	DepartmentMechanicalDesign       DepartmentName = "MECHANICAL_DESIGN"
	DepartmentElectricalDesign       DepartmentName = "ELECTRICAL_DESIGN"
	DepartmentInHouseCommissioning   DepartmentName = "IN_HOUSE_COMMISSIONING"
	DepartmentMechanicalInstallation DepartmentName = "MECHANICAL_INSTALLATION"
	DepartmentElectricalInstallation DepartmentName = "ELECTRICAL_INSTALLATION"
	DepartmentOnSiteCommissioning    DepartmentName = "ON_SITE_COMMISSIONING"
	DepartmentSupportFunction        DepartmentName = "SUPPORT_FUNCTION"
)

func (t DepartmentName) IsValid() bool {
	switch t {
	case DepartmentProjectManagement, DepartmentMechanicalDesign, DepartmentElectricalDesign,
		DepartmentInHouseCommissioning, DepartmentMechanicalInstallation, DepartmentElectricalInstallation,
		DepartmentOnSiteCommissioning, DepartmentSupportFunction:
		return true
	}
	return false
}

func (t *DepartmentName) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("department name must be string")
	}
	v := DepartmentName(strings.ToUpper(strings.TrimSpace(s)))
	if !v.IsValid() {
		return fmt.Errorf("invalid department name %q", s)
	}
	*t = v
	return nil
}

func (t DepartmentName) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *DepartmentName) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*t = DepartmentName(v)
	case string:
		*t = DepartmentName(v)
	default:
		return fmt.Errorf("cannot convert %T to DepartmentName", value)
	}
	return nil
}

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
)

// BaseCurrency is what every stored amount is expressed in.
const BaseCurrency = CurrencyINR

func (t Currency) IsValid() bool {
	switch t {
	case CurrencyINR, CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyCHF:
		return true
	}
	return false
}

func (t Currency) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *Currency) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*t = Currency(v)
	case string:
		*t = Currency(v)
	default:
		return fmt.Errorf("cannot convert %T to Currency", value)
	}
	return nil
}

type SnapshotFrequency string

const (
	SnapshotFrequencyMonthly  SnapshotFrequency = "MONTHLY"
	SnapshotFrequencyBiweekly SnapshotFrequency = "BIWEEKLY"
	SnapshotFrequencyWeekly   SnapshotFrequency = "WEEKLY"
)

func ParseSnapshotFrequency(s string) (SnapshotFrequency, error) {
	f := SnapshotFrequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case "":
		return SnapshotFrequencyMonthly, nil
	case SnapshotFrequencyMonthly, SnapshotFrequencyBiweekly, SnapshotFrequencyWeekly:
		return f, nil
	}
	return "", fmt.Errorf("invalid snapshot frequency %q", s)
}

func (t *SnapshotFrequency) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("snapshot frequency must be string")
	}
	f, err := ParseSnapshotFrequency(s)
	if err != nil {
		return err
	}
	*t = f
	return nil
}

func (t SnapshotFrequency) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *SnapshotFrequency) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*t = SnapshotFrequency(v)
	case string:
		*t = SnapshotFrequency(v)
	default:
		return fmt.Errorf("cannot convert %T to SnapshotFrequency", value)
	}
	return nil
}

// MyDate is a calendar date stored in a DATE column and exchanged as "2006-01-02".
type MyDate time.Time

func NewMyDate(t time.Time) MyDate {
	y, m, d := t.Date()
	return MyDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func (t MyDate) Time() time.Time {
	return time.Time(t)
}

func (t MyDate) String() string {
	return time.Time(t).Format("2006-01-02")
}

func (t MyDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *MyDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("date must be string")
	}
	parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	*t = MyDate(parsed)
	return nil
}

// Value implements the driver.Valuer interface
func (t MyDate) Value() (driver.Value, error) {
	return NewMyDate(time.Time(t)).Time(), nil
}

// Scan implements the sql.Scanner interface
func (t *MyDate) Scan(value interface{}) error {
	if value == nil {
		*t = MyDate(time.Time{})
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*t = NewMyDate(v)
	default:
		return fmt.Errorf("cannot convert %T to MyDate", value)
	}
	return nil
}
