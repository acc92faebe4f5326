package daterange

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Scan reads DATE columns. Drivers hand dates back as midnight of the day
// in some zone; only the calendar fields are kept.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = New(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case nil:
		return fmt.Errorf("cannot scan NULL into Date")
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Value writes the day as YYYY-MM-DD so the database never applies a zone.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}
