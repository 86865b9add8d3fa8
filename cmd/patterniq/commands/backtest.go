package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/patterniq/internal/backtest"
	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스팅 엔진",
	Long: `과거 구간에서 파이프라인을 워크포워드로 재현합니다.

각 거래일마다 전일 결정시점 데이터만으로 목표 비중을 다시 산출하고,
비용/슬리피지와 손절·익절을 반영해 포트폴리오를 시뮬레이션합니다.

검증 지표:
- 수익률 (총/연환산), 변동성, Sharpe, Sortino
- MDD, Calmar, 일/주/월 승률
- 회전율, 총비용, VaR95/CVaR95

Example:
  go run ./cmd/patterniq backtest run --from 2024-01-02 --to 2024-12-30
  go run ./cmd/patterniq backtest run --from 2024-01-02 --cost-bps 8 --slippage-bps 3`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		RunE:  runBacktest,
	}

	// Flags
	backtestFrom        string
	backtestTo          string
	backtestUniverse    string
	backtestCostBps     float64
	backtestSlippageBps float64
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "시작 날짜 (YYYY-MM-DD, 필수)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	backtestRunCmd.Flags().StringVar(&backtestUniverse, "universe", "", "쉼표 구분 종목 코드 (기본: 활성 종목 전체)")
	backtestRunCmd.Flags().Float64Var(&backtestCostBps, "cost-bps", 0, "거래비용 bps (기본: 전략 설정값)")
	backtestRunCmd.Flags().Float64Var(&backtestSlippageBps, "slippage-bps", 0, "슬리피지 bps (기본: 전략 설정값)")

	_ = backtestRunCmd.MarkFlagRequired("from")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	startDate, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	endDate := time.Now().UTC().Truncate(24 * time.Hour)
	if backtestTo != "" {
		endDate, err = time.Parse("2006-01-02", backtestTo)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	rt, err := initRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	universe := rt.universe(startDate)
	if backtestUniverse != "" {
		universe = strings.Split(backtestUniverse, ",")
	}

	costBps := rt.strategy.Costs.CostBps
	if backtestCostBps > 0 {
		costBps = backtestCostBps
	}
	slippageBps := rt.strategy.Costs.SlippageBps
	if backtestSlippageBps > 0 {
		slippageBps = backtestSlippageBps
	}

	// 실행 설정 스냅샷을 해시 키로 고정 — run 기록과 대조 가능한 감사 흔적
	snap, err := strategyconfig.NewDecisionSnapshot(rt.strategy, rt.strategyYAML)
	if err != nil {
		return fmt.Errorf("failed to snapshot strategy config: %w", err)
	}
	if err := rt.store.SaveDecisionSnapshot(cmd.Context(), snap); err != nil {
		return fmt.Errorf("failed to save decision snapshot: %w", err)
	}

	params := contracts.RunParams{
		Universe:    universe,
		StartDate:   startDate,
		EndDate:     endDate,
		CostBps:     costBps,
		SlippageBps: slippageBps,
		ConfigHash:  snap.ConfigHash,
	}

	fmt.Println("=== PatternIQ Backtest ===")
	fmt.Printf("\nPeriod:    %s ~ %s\n", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	fmt.Printf("Universe:  %d instruments\n", len(universe))
	fmt.Printf("Costs:     %.1f bps + %.1f bps slippage\n\n", costBps, slippageBps)

	engine := backtest.NewEngine(rt.orch, rt.prices, rt.strategy, rt.store, rt.log)
	run, err := engine.Run(cmd.Context(), params)
	if err != nil {
		fmt.Printf("Run %s FAILED: %s\n", run.ID, run.FailReason)
		return err
	}

	printRunResult(run)
	return nil
}
