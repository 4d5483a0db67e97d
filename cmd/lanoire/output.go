package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/lanoire/lanoire-web/internal/domain/navigation"
	"github.com/lanoire/lanoire-web/internal/service"
)

func printIdentity(w io.Writer, id *domainauth.Identity) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Name", id.DisplayName()},
		{"Username", id.Username},
		{"Email", id.Email},
		{"Roles", strings.Join(id.RoleNames(), ", ")},
	}
	if id.IsSuperAdmin() {
		rows = append(rows, [2]string{"Access", "super admin"})
	}
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = "-"
		}
		if err := writef(tw, "%s:\t%s\n", row[0], value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printMenu(w io.Writer, menu []navigation.Destination) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, d := range menu {
		if err := writef(tw, "%s\t%s\n", d.Title, d.Path); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printNotifications(w io.Writer, rows []service.Notification) error {
	if len(rows) == 0 {
		return writeln(w, "No notifications.")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeln(tw, "ID\tSTATUS\tCREATED\tMESSAGE"); err != nil {
		return err
	}
	for _, n := range rows {
		status := "read"
		if n.Unread() {
			status = "unread"
		}
		created := n.CreatedAt
		if created == "" {
			created = "-"
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\n", n.ID, status, created, n.Summary()); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return writeln(w, string(indentJSON(raw)))
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
