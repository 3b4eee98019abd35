package dump

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Summary writes one table row per section.
func Summary(w io.Writer, r *Report) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Index", "Type", "Size", "EntSize", "Load", "Data", "Status"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, s := range r.Sections {
		load := "-"
		if s.Loadable {
			load = "yes"
		}
		status := "ok"
		if s.Error != "" {
			status = s.Error
		}
		table.Append([]string{
			strconv.Itoa(s.Index),
			s.Type,
			strconv.FormatUint(s.Size, 10),
			strconv.FormatUint(uint64(s.EntSize), 10),
			load,
			fmt.Sprintf("0x%x", s.DataAddr),
			status,
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "diagnostics", strconv.Itoa(len(r.Diagnostics))})
	table.Render()
	return nil
}
