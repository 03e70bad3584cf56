package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/discovery"
	"github.com/rileyhilliard/bealink/internal/mac"
	"github.com/rileyhilliard/bealink/internal/state"
)

// Column widths for the device table.
const (
	colStatus  = 9
	colName    = 20
	colAddress = 18
	colMAC     = 19
)

// StatusLabel is the one-word state of a view.
func StatusLabel(v state.View) string {
	switch {
	case v.ActionInProgress():
		return v.Action
	case v.Resolving:
		return "resolving"
	case v.Health.Online:
		return "online"
	case v.Health.CheckedAt.IsZero():
		return "unknown"
	default:
		return "offline"
	}
}

// StatusSymbol renders the colored status glyph for a view.
func StatusSymbol(v state.View) string {
	switch {
	case v.Resolving:
		return InfoStyle().Render(SymbolProgress)
	case v.Health.Online:
		return SuccessStyle().Render(SymbolComplete)
	case v.Health.CheckedAt.IsZero():
		return MutedStyle().Render(SymbolPending)
	default:
		return ErrorStyle().Render(SymbolOffline)
	}
}

// AddressLabel is the address column: the probe address, else why there is
// none.
func AddressLabel(v state.View) string {
	if addr := v.Address(); addr != "" {
		return addr
	}
	switch {
	case v.Resolving:
		return "resolving..."
	case v.Device.Hostname == "":
		return "-"
	case v.ResolveErr != "":
		return "unresolved"
	default:
		return "pending"
	}
}

// MACLabel is the formatted MAC or "-".
func MACLabel(v state.View) string {
	if !v.Device.HasMAC() {
		return "-"
	}
	return mac.Display(v.Device.MAC)
}

// RenderDeviceTable renders views as a plain table for one-shot CLI output.
// selected marks one row by device id; empty marks none.
func RenderDeviceTable(views []state.View, selected string) string {
	if len(views) == 0 {
		return MutedStyle().Render("No devices configured. Add one with 'bealink device add'.") + "\n"
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorMuted)

	var b strings.Builder
	b.WriteString(headerStyle.Render(
		"  " + padRight("STATUS", colStatus+2) +
			padRight("NAME", colName) +
			padRight("ADDRESS", colAddress) +
			padRight("MAC", colMAC) +
			"LATENCY"))
	b.WriteString("\n")

	for _, v := range views {
		marker := "  "
		name := truncate(v.Device.DisplayName(), colName-2)
		if selected != "" && v.Device.ID == selected {
			marker = InfoStyle().Render(SymbolSelection) + " "
			name = lipgloss.NewStyle().Bold(true).Render(name)
		}

		statusStyle := MutedStyle()
		if v.Health.Online {
			statusStyle = SuccessStyle()
		}
		address := AddressLabel(v)
		if v.Address() == "" {
			address = MutedStyle().Render(address)
		}

		latency := MutedStyle().Render("-")
		if v.Health.Online {
			latency = LatencyStyle(v.Health.Latency.Milliseconds()).Render(FormatLatency(v.Health.Latency))
		}

		b.WriteString(marker +
			StatusSymbol(v) + " " +
			padRight(statusStyle.Render(StatusLabel(v)), colStatus) +
			padRight(name, colName) +
			padRight(address, colAddress) +
			padRight(MACLabel(v), colMAC) +
			latency)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDeviceList renders configured devices without live state.
func RenderDeviceList(devices []device.Device) string {
	if len(devices) == 0 {
		return MutedStyle().Render("No devices configured. Add one with 'bealink device add'.") + "\n"
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	var b strings.Builder
	b.WriteString(headerStyle.Render("  " +
		padRight("NAME", colName) +
		padRight("HOST", colName) +
		padRight("MAC", colMAC) +
		"ID"))
	b.WriteString("\n")
	for _, d := range devices {
		host := d.Hostname
		if host == "" {
			host = "-"
		}
		macLabel := "-"
		if d.HasMAC() {
			macLabel = mac.Display(d.MAC)
		}
		b.WriteString("  " +
			padRight(truncate(d.DisplayName(), colName-2), colName) +
			padRight(truncate(host, colName-2), colName) +
			padRight(macLabel, colMAC) +
			MutedStyle().Render(shortID(d.ID)))
		b.WriteString("\n")
	}
	return b.String()
}

// shortID is the id prefix shown in lists; device.Match accepts it.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderInstanceTable renders agents seen on the LAN.
func RenderInstanceTable(instances []discovery.Instance) string {
	if len(instances) == 0 {
		return MutedStyle().Render("No agents found.") + "\n"
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	var b strings.Builder
	b.WriteString(headerStyle.Render("  " + padRight("INSTANCE", 28) + padRight("HOST", 28) + "ADDRESSES"))
	b.WriteString("\n")
	for _, inst := range instances {
		host := inst.Host
		if inst.Port > 0 {
			host += ":" + strconv.Itoa(inst.Port)
		}
		addrs := strings.Join(inst.Addrs, ", ")
		if addrs == "" {
			addrs = MutedStyle().Render("-")
		}
		b.WriteString("  " + padRight(truncate(inst.Name, 26), 28) + padRight(truncate(host, 26), 28) + addrs)
		b.WriteString("\n")
	}
	return b.String()
}

// LatencyStyle colors a latency in milliseconds: green when snappy, amber
// when sluggish, red when slow.
func LatencyStyle(ms int64) lipgloss.Style {
	switch {
	case ms >= SlowLatencyMs:
		return ErrorStyle()
	case ms >= SluggishLatencyMs:
		return WarningStyle()
	default:
		return SuccessStyle()
	}
}

// Latency thresholds in milliseconds.
const (
	SluggishLatencyMs = 100
	SlowLatencyMs     = 500
)

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-visibleLen)
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
