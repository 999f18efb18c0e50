package term

import (
	"fmt"
	"io"
	"text/tabwriter"

	"smartvision/models"
)

// StatsView prints the aggregates after every change.
type StatsView struct {
	out io.Writer
}

func NewStatsView(out io.Writer) *StatsView {
	return &StatsView{out: out}
}

func (v *StatsView) RenderStats(s models.Stats) {
	fmt.Fprintf(v.out, "Zones: %d | Total area: %s ha | Coverage: %d%%\n", s.Count, s.TotalArea.StringFixed(2), s.Coverage)
}

// PrintZones writes the zone sidebar as a table.
func PrintZones(out io.Writer, zones []models.Zone) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAREA (ha)")
	for _, z := range zones {
		fmt.Fprintf(w, "%d\t%s\t%s\n", z.ID, z.Name, z.Area.StringFixed(2))
	}
	w.Flush()
}

func PrintCameras(out io.Writer, cameras []models.Camera) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tURL\tLOCATION")
	for _, c := range cameras {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.6f,%.6f\n", c.ID, c.Name, c.DepartmentName, c.URL, c.Location.Lon(), c.Location.Lat())
	}
	w.Flush()
}
