package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/patterniq/internal/contracts"
)

// printRunResult renders a completed run to stdout
func printRunResult(run *contracts.BacktestRun) {
	m := run.Metrics

	fmt.Println("Backtest Completed")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Run ID:        %s\n", run.ID)
	fmt.Printf("Config hash:   %.12s\n", run.Params.ConfigHash)
	fmt.Printf("Trading days:  %d\n\n", m.TradingDays)

	fmt.Println("-- Returns")
	fmt.Printf("Total:         %8.2f%%\n", m.TotalReturn*100)
	fmt.Printf("Annualized:    %8.2f%%\n", m.AnnualizedReturn*100)
	fmt.Printf("Volatility:    %8.2f%%\n", m.Volatility*100)

	fmt.Println("\n-- Risk")
	fmt.Printf("Sharpe:        %8.2f\n", m.Sharpe)
	fmt.Printf("Sortino:       %8.2f\n", m.Sortino)
	fmt.Printf("Max drawdown:  %8.2f%% (%d days)\n", m.MaxDrawdown*100, m.MaxDrawdownDays)
	fmt.Printf("Calmar:        %8.2f\n", m.Calmar)
	fmt.Printf("VaR95:         %8.2f%%\n", m.VaR95*100)
	fmt.Printf("CVaR95:        %8.2f%%\n", m.CVaR95*100)

	fmt.Println("\n-- Activity")
	fmt.Printf("Hit rate:      %6.1f%% d / %.1f%% w / %.1f%% m\n",
		m.HitRateDaily*100, m.HitRateWeekly*100, m.HitRateMonthly*100)
	fmt.Printf("Avg turnover:  %8.2f%%\n", m.AvgTurnover*100)
	fmt.Printf("Total cost:    %8.2f%%\n", m.TotalCost*100)
}
