package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "일별 파이프라인",
	Long: `하루치 파이프라인을 실행합니다.

피처 계산 → 시그널 생성 → IC 가중 블렌딩 → 목표 비중 산출 순서로
진행되며, 각 단계 결과는 데이터베이스에 키 기반 upsert로 저장됩니다.

Example:
  go run ./cmd/patterniq pipeline run --date 2025-06-02
  go run ./cmd/patterniq pipeline run --date 2025-06-02 --universe AAPL,MSFT,TSLA`,
}

var (
	pipelineRunCmd = &cobra.Command{
		Use:   "run",
		Short: "지정 날짜의 파이프라인 실행",
		RunE:  runPipeline,
	}

	// Flags
	pipelineDate     string
	pipelineUniverse string
)

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)

	pipelineRunCmd.Flags().StringVar(&pipelineDate, "date", "", "실행 날짜 (YYYY-MM-DD, 필수)")
	pipelineRunCmd.Flags().StringVar(&pipelineUniverse, "universe", "", "쉼표 구분 종목 코드 (기본: 활성 종목 전체)")

	_ = pipelineRunCmd.MarkFlagRequired("date")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	date, err := time.Parse("2006-01-02", pipelineDate)
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}

	rt, err := initRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	universe := rt.universe(date)
	if pipelineUniverse != "" {
		universe = strings.Split(pipelineUniverse, ",")
	}
	if len(universe) == 0 {
		return fmt.Errorf("empty universe for %s", date.Format("2006-01-02"))
	}

	result, err := rt.orch.RunDate(cmd.Context(), universe, date)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	fmt.Printf("=== PatternIQ Pipeline %s ===\n\n", date.Format("2006-01-02"))
	fmt.Printf("Universe:     %d instruments\n", len(universe))
	fmt.Printf("Features:     %d vectors\n", len(result.Features))
	fmt.Printf("Signals:      %d scores\n", result.Signals.Count())
	fmt.Printf("Combined:     %d instruments\n", len(result.Combined))
	fmt.Printf("Blend mode:   %s\n", result.Weights.Mode)
	fmt.Printf("Targets:      %d positions (gross L %.1f%% / S %.1f%%)\n",
		result.Targets.Count(),
		result.Targets.GrossLong()*100, result.Targets.GrossShort()*100)
	fmt.Printf("Duration:     %s\n", result.Duration)

	return nil
}
