package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/logging"
	"github.com/danielpatrickdp/beam-imaging/go-fitter/internal/store"
)

// #region inspect
func newInspectCmd(a *app) *cobra.Command {
	var last int
	var runID string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List stored runs or show one run in detail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			w := cmd.OutOrStdout()
			if runID != "" {
				return runDetailMode(w, s, runID, jsonOut)
			}
			return runListMode(w, s, last, jsonOut)
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent runs")
	cmd.Flags().StringVar(&runID, "run", "", "show single run detail")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion inspect

// #region list-mode
type listRow struct {
	RunID      string  `json:"run_id"`
	Kind       string  `json:"kind"`
	Name       string  `json:"name"`
	Model      string  `json:"model"`
	Chi2Dof    float64 `json:"chi2_dof"`
	Correction float64 `json:"correction"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
}

func runListMode(w io.Writer, s *store.Store, last int, jsonOut bool) error {
	runs, err := s.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs found")
		return nil
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = listRow{
			RunID:      r.RunID,
			Kind:       r.Kind,
			Name:       r.Name,
			Model:      r.Model,
			Chi2Dof:    finite(r.Chi2Dof()),
			Correction: finite(r.Correction),
			Status:     r.Status,
			CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(w, rows)
	}
	fmt.Fprintf(w, "%-10s  %-10s  %-8s  %10s  %11s  %-20s  %s\n",
		"Run", "Kind", "Model", "Chi2/Dof", "Correction", "Status", "Time")
	fmt.Fprintf(w, "%-10s+-%-10s+-%-8s+-%10s+-%11s+-%-20s+-%s\n",
		"----------", "----------", "--------", "----------", "-----------", "--------------------", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s  %-10s  %-8s  %10.4f  %11.5f  %-20s  %s\n",
			shortID(r.RunID), r.Kind, r.Model, r.Chi2Dof, r.Correction, r.Status, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode
type detailOutput struct {
	Run        store.RunRecord      `json:"run"`
	Initial    []store.ParameterRow `json:"initial"`
	Final      []store.ParameterRow `json:"final"`
	Scans      []scanRow            `json:"scans"`
	Hists      []string             `json:"histograms"`
	Toys       int                  `json:"toys"`
	Degenerate int                  `json:"degenerate"`
	Events     []logging.RunEvent   `json:"events"`
}

type scanRow struct {
	Scan  string  `json:"scan"`
	Chisq float64 `json:"chisq"`
	Dof   int     `json:"dof"`
}

func runDetailMode(w io.Writer, s *store.Store, runID string, jsonOut bool) error {
	run, err := s.GetRun(runID)
	if err != nil {
		return err
	}
	out := detailOutput{Run: run}
	if out.Initial, err = s.GetParameters(runID, "initial"); err != nil {
		return err
	}
	if out.Final, err = s.GetParameters(runID, "final"); err != nil {
		return err
	}
	scans, err := s.GetScanChiSq(runID)
	if err != nil {
		return err
	}
	for _, c := range scans {
		out.Scans = append(out.Scans, scanRow{Scan: c.Scan, Chisq: c.Chisq, Dof: c.Dof})
	}
	if out.Hists, err = s.HistogramNames(runID); err != nil {
		return err
	}
	toys, err := s.GetToys(runID)
	if err != nil {
		return err
	}
	out.Toys = len(toys)
	for _, t := range toys {
		if t.Degenerate {
			out.Degenerate++
		}
	}
	if out.Events, err = logging.ReadEvents(s.DB(), runID); err != nil {
		return err
	}

	if jsonOut {
		r := &out.Run
		for _, v := range []*float64{&r.Chi2, &r.OverlapTrue, &r.OverlapAverage, &r.OverlapRMS, &r.Correction, &r.Uncertainty, &r.Scaling} {
			*v = finite(*v)
		}
		for i := range out.Initial {
			out.Initial[i].Value, out.Initial[i].Error = finite(out.Initial[i].Value), finite(out.Initial[i].Error)
		}
		for i := range out.Final {
			out.Final[i].Value, out.Final[i].Error = finite(out.Final[i].Value), finite(out.Final[i].Error)
		}
		for i := range out.Scans {
			out.Scans[i].Chisq = finite(out.Scans[i].Chisq)
		}
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Run:         %s\n", run.RunID)
	fmt.Fprintf(w, "Kind:        %s\n", run.Kind)
	fmt.Fprintf(w, "Name:        %s\n", run.Name)
	fmt.Fprintf(w, "Model:       %s\n", run.Model)
	fmt.Fprintf(w, "Group:       %s\n", run.Group)
	fmt.Fprintf(w, "Created:     %s\n", run.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "Chi2/Dof:    %.4f (%g / %d)\n", finite(run.Chi2Dof()), run.Chi2, run.Dof)
	fmt.Fprintf(w, "Converged:   %v (%s)\n", run.Converged, run.Status)
	fmt.Fprintf(w, "Overlap:     true=%.6g average=%.6g rms=%.6g\n", run.OverlapTrue, run.OverlapAverage, run.OverlapRMS)
	fmt.Fprintf(w, "Correction:  %.6g ± %.6g (%d toys, %d degenerate)\n", run.Correction, run.Uncertainty, out.Toys, out.Degenerate)

	if len(out.Scans) > 0 {
		fmt.Fprintf(w, "\nScans:\n")
		var chi []float64
		for _, c := range out.Scans {
			fmt.Fprintf(w, "  %-6s chisq=%10.3f dof=%5d\n", c.Scan, c.Chisq, c.Dof)
			chi = append(chi, c.Chisq)
		}
		fmt.Fprintf(w, "  %-6s chisq=%10.3f\n", "total", floats.Sum(chi))
	}
	printParameters(w, "Initial", out.Initial)
	printParameters(w, "Final", out.Final)
	if len(out.Hists) > 0 {
		fmt.Fprintf(w, "\nHistograms: %d\n", len(out.Hists))
	}
	if len(out.Events) > 0 {
		fmt.Fprintf(w, "\nEvents:\n")
		for _, ev := range out.Events {
			fmt.Fprintf(w, "  %s  %-5s  %s\n", ev.CreatedAt.Format("15:04:05"), ev.Level, ev.Event)
		}
	}
	return nil
}

func printParameters(w io.Writer, title string, rows []store.ParameterRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s parameters:\n", title)
	for _, p := range rows {
		if p.Error != 0 {
			fmt.Fprintf(w, "  %-20s %12.6g ± %.3g\n", p.Name, p.Value, p.Error)
		} else {
			fmt.Fprintf(w, "  %-20s %12.6g\n", p.Name, p.Value)
		}
	}
}

// #endregion detail-mode

// #region output
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// finite maps ±Inf and NaN to -1 so tables and JSON stay printable.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	return v
}

// #endregion output
