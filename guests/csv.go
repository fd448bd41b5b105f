package guests

import (
	"encoding/csv"
	"fmt"
	"io"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

var csvHeader = []string{
	"Name",
	"Email",
	"Date of Birth",
	"City",
	"State/Province",
	"Country",
	"Profession",
	"Registration Date",
}

// WriteCSV writes the guest list with a header row, in the order given.
func WriteCSV(w io.Writer, guestList []Guest) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, g := range guestList {
		err := cw.Write([]string{
			g.Name,
			g.Email,
			g.DateOfBirth.Format(DateLayout),
			g.City,
			g.State,
			g.Country,
			g.Profession,
			g.RegisteredAt.UTC().Format(TimestampLayout),
		})
		if err != nil {
			return fmt.Errorf("failed to write csv row for %q: %w", g.Email, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
