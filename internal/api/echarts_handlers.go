package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// fleetHealthChart renders an HTML bar chart of the tenant's machines,
// worst first, with per-machine component counts stacked by status.
func (s *Server) fleetHealthChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	tenant, ok := s.tenantParam(w, r)
	if !ok {
		return
	}

	statuses, err := s.db.MachineStatusesByTenant(r.Context(), tenant)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load machine statuses")
		log.Printf("api: fleet chart for %s: %v", tenant, err)
		return
	}
	if len(statuses) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no machine statuses for tenant")
		return
	}

	units := make([]string, 0, len(statuses))
	normal := make([]opts.BarData, 0, len(statuses))
	alert := make([]opts.BarData, 0, len(statuses))
	abnormal := make([]opts.BarData, 0, len(statuses))
	counts := map[oil.ReportStatus]int{}
	for _, ms := range statuses {
		units = append(units, ms.UnitID)
		normal = append(normal, opts.BarData{Value: ms.ComponentsNormal})
		alert = append(alert, opts.BarData{Value: ms.ComponentsAlert})
		abnormal = append(abnormal, opts.BarData{Value: ms.ComponentsAbnormal})
		counts[ms.Status]++
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Fleet Health", Theme: "dark", Width: "1200px", Height: "640px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Fleet Health",
			Subtitle: fmt.Sprintf("tenant=%s machines=%d (%d normal, %d alert, %d abnormal)",
				tenant, len(statuses),
				counts[oil.StatusNormal], counts[oil.StatusAlert], counts[oil.StatusAbnormal]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	stack := charts.WithBarChartOpts(opts.BarChart{Stack: "components"})
	bar.SetXAxis(units).
		AddSeries("normal", normal, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2ca02c"})).
		AddSeries("alert", alert, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff7f0e"})).
		AddSeries("abnormal", abnormal, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d62728"}))

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
