package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "patterniq",
	Short: "PatternIQ - 크로스섹션 시그널 기반 퀀트 파이프라인",
	Long: `PatternIQ Unified CLI

피처 → 시그널 → IC 블렌딩 → 포트폴리오 → 백테스트.
일별 횡단면 점수로 롱/숏 목표 비중을 산출합니다.

Usage:
  go run ./cmd/patterniq [command]

Examples:
  go run ./cmd/patterniq pipeline run --date 2025-06-02
  go run ./cmd/patterniq backtest run --from 2024-01-02 --to 2024-12-30
  go run ./cmd/patterniq scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "전략 YAML 경로 (기본: 환경변수 STRATEGY_CONFIG_PATH, 없으면 내장 기본값)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
