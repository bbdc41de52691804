package output

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results that can render as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := newTable(w, "")
	table.SetHeader(data.Headers())
	table.SetAutoFormatHeaders(true)
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// SimpleTable prints "key: value" pairs.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	table := newTable(w, ":")
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
	return nil
}

func newTable(w io.Writer, columnSeparator string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(columnSeparator)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// UserRow is one entry of a users listing.
type UserRow struct {
	Username string   `json:"username" yaml:"username"`
	Scheme   string   `json:"scheme" yaml:"scheme"`
	Roles    []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// UserTable lists users of a realm.
type UserTable []UserRow

func (t UserTable) Headers() []string {
	return []string{"Username", "Scheme", "Roles"}
}

func (t UserTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, u := range t {
		roles := "-"
		if len(u.Roles) > 0 {
			roles = strings.Join(u.Roles, ",")
		}
		rows = append(rows, []string{u.Username, u.Scheme, roles})
	}
	return rows
}
