package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/patterniq/internal/scheduler"
	"github.com/wonny/patterniq/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 데몬",
	Long: `일별 잡을 크론 스케줄로 실행합니다.

등록 잡:
- daily_pipeline: 장 마감 후 최신 거래일 파이프라인 실행
- ic_realization: H일 전 시그널의 포워드 수익률 실현 → IC 윈도우 반영

Example:
  go run ./cmd/patterniq scheduler start
  go run ./cmd/patterniq scheduler start --pipeline-cron "0 0 18 * * 1-5"`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작 (포그라운드)",
		RunE:  runScheduler,
	}

	// Flags
	pipelineCron    string
	realizationCron string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)

	schedulerStartCmd.Flags().StringVar(&pipelineCron, "pipeline-cron", "", "파이프라인 잡 크론식 (기본: 평일 18:00)")
	schedulerStartCmd.Flags().StringVar(&realizationCron, "realization-cron", "", "IC 실현 잡 크론식 (기본: 평일 18:30)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	universe := rt.universe(time.Now().UTC())
	if len(universe) == 0 {
		return fmt.Errorf("no active instruments")
	}

	sched := scheduler.New(rt.log)

	pipelineJob := jobs.NewPipelineJob(rt.orch, rt.prices, universe, pipelineCron, rt.log)
	if err := sched.Register(pipelineJob); err != nil {
		return err
	}

	realizationJob := jobs.NewICRealizationJob(
		rt.orch, rt.prices, universe,
		rt.strategy.Blend.ForwardHorizonDays, realizationCron, rt.log,
	)
	if err := sched.Register(realizationJob); err != nil {
		return err
	}

	sched.Start()
	fmt.Printf("Scheduler running with %d jobs. Ctrl+C to stop.\n", len(sched.Jobs()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
