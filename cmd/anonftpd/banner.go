package main

import (
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// printBanner writes the startup banner and the effective settings.
func printBanner(w io.Writer, cfg *config) {
	title := color.New(color.FgGreen, color.Bold)
	hint := color.New(color.FgCyan)

	title.Fprintln(w, "anonftpd: anonymous read-only FTP")
	hint.Fprintf(w, "connect with: ftp -P %s localhost (user: anonymous)\n", portOf(cfg.addr))

	table := tablewriter.NewWriter(w)
	table.Header("Setting", "Value")
	table.Configure(func(c *tablewriter.Config) {
		c.Header = tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}}
		c.Row = tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}}
	})
	for _, row := range settingsRows(cfg) {
		_ = table.Append(row)
	}
	if err := table.Render(); err != nil {
		fmt.Fprintf(w, "settings: %v\n", err)
	}
}

// settingsRows lists the settings shown at startup.
func settingsRows(cfg *config) [][]string {
	root := cfg.root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	rep := "binary"
	if cfg.textDefault {
		rep = "ascii"
	}
	pasv := "any"
	if cfg.pasvMin != 0 || cfg.pasvMax != 0 {
		pasv = fmt.Sprintf("%d-%d", cfg.pasvMin, cfg.pasvMax)
	}
	mode := "concurrent"
	if cfg.sequential {
		mode = "sequential"
	}

	return [][]string{
		{"address", cfg.addr},
		{"root", root},
		{"list format", cfg.listFormat},
		{"default type", rep},
		{"sessions", mode},
		{"max connections", limitString(int64(cfg.maxConns), "")},
		{"max per address", limitString(int64(cfg.maxConnsPerIP), "")},
		{"passive ports", pasv},
		{"public host", orDash(cfg.publicHost)},
		{"idle timeout", durationString(cfg.idleTimeout)},
		{"passive timeout", durationString(cfg.passiveTimeout)},
		{"dial timeout", durationString(cfg.dialTimeout)},
		{"bandwidth", limitString(cfg.bandwidth, " B/s")},
		{"transfer log", orDash(cfg.xferlog)},
	}
}

// portOf returns the port of a listen address, or the FTP default when the
// address has none.
func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return "21"
	}
	return port
}

func durationString(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func limitString(n int64, unit string) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.FormatInt(n, 10) + unit
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
