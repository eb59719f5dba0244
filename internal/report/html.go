package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderTrajectoryHTML writes a standalone HTML page with a top-down line
// chart of every series. Axes share one symmetric range so the path is not
// distorted.
func RenderTrajectoryHTML(w io.Writer, title, subtitle string, series ...Series) error {
	maxAbs := 0.0
	data := make([][]opts.LineData, len(series))
	drawn := 0
	for i, s := range series {
		poses := finitePrefix(s.Poses)
		pts := make([]opts.LineData, 0, len(poses))
		for _, p := range poses {
			maxAbs = math.Max(maxAbs, math.Max(math.Abs(p.X), math.Abs(p.Y)))
			pts = append(pts, opts.LineData{Value: []interface{}{p.X, p.Y}})
		}
		data[i] = pts
		if len(pts) > 0 {
			drawn++
		}
	}
	if drawn == 0 {
		return ErrNoSeries
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	for i, s := range series {
		if len(data[i]) == 0 {
			continue
		}
		line.AddSeries(s.Name, data[i], charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
