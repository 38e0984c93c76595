package backtest

import (
	"fmt"
	"io"
	"math"
	"time"
)

// WriteReport renders a run and its metrics as a plain-text report.
// Uncomputable metrics render as N/A rather than failing.
func WriteReport(w io.Writer, result *Result, metrics Metrics, baselines []BaselineComparison) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Report")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Strategy:       %s\n", result.Strategy)
	fmt.Fprintf(w, "State:          %s\n", result.State)

	if result.State == StateFailed {
		fmt.Fprintf(w, "Failed at bar:  %d (%s)\n", result.FailedBar, result.FailedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "Error:          %v\n", result.Err)
		return
	}

	if n := len(result.Equity); n > 0 {
		fmt.Fprintf(w, "Period:         %s .. %s\n",
			result.Equity[0].Timestamp.Format(time.RFC3339),
			result.Equity[n-1].Timestamp.Format(time.RFC3339))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Initial:        %s\n", result.InitialCapital)
	fmt.Fprintf(w, "Final Equity:   %s\n", result.FinalEquity)
	fmt.Fprintf(w, "Total Return:   %.2f%%\n", metrics.TotalReturnPct)
	if metrics.Sharpe != nil {
		fmt.Fprintf(w, "Sharpe Ratio:   %.2f\n", *metrics.Sharpe)
	} else {
		fmt.Fprintf(w, "Sharpe Ratio:   N/A\n")
	}
	fmt.Fprintf(w, "Max Drawdown:   %.2f%%\n", metrics.MaxDrawdownPct)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trades")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Executed:       %d\n", len(result.Trades))
	fmt.Fprintf(w, "Round Trips:    %d (%d won, %d lost)\n",
		metrics.RoundTrips, metrics.Wins, metrics.Losses)
	if metrics.WinRate != nil {
		fmt.Fprintf(w, "Win Rate:       %.2f%%\n", *metrics.WinRate*100)
	} else {
		fmt.Fprintf(w, "Win Rate:       N/A\n")
	}
	if math.IsInf(metrics.ProfitFactor, 1) {
		fmt.Fprintf(w, "Profit Factor:  Inf (no losing trades)\n")
	} else {
		fmt.Fprintf(w, "Profit Factor:  %.2f\n", metrics.ProfitFactor)
	}
	// The downgrade count separates "strategy chose not to trade" from
	// "strategy wanted to trade but could not".
	fmt.Fprintf(w, "Downgraded:     %d\n", metrics.DowngradeCount)

	if len(baselines) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Baselines")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, baseline := range baselines {
			fmt.Fprintf(w, "%-24s return %.2f%%, max drawdown %.2f%%\n",
				baseline.Name+":", baseline.TotalReturnPct, baseline.MaxDrawdownPct)
		}
	}

	fmt.Fprintln(w)
}
