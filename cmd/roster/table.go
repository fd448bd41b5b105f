package main

import (
	"fmt"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/slices"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ade80")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1a3a24"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

var rosterHeaders = []string{"Name", "Email", "Date of Birth", "City", "State/Province", "Country", "Profession", "Registered"}

func renderRoster(guestList []guests.Guest) string {
	if len(guestList) == 0 {
		return mutedStyle.Render("No guests found.")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(rosterHeaders...).
		Rows(slices.Map(guestList, guestRow)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.Render() + "\n" + mutedStyle.Render(fmt.Sprintf("%d guests", len(guestList)))
}

func guestRow(g guests.Guest) []string {
	return []string{
		g.Name,
		g.Email,
		g.DateOfBirth.Format(guests.DateLayout),
		g.City,
		g.State,
		g.Country,
		g.Profession,
		g.RegisteredAt.UTC().Format(guests.TimestampLayout),
	}
}
