package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/patterniq/internal/api"
	"github.com/wonny/patterniq/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버",
	Long: `읽기 전용 조회 API 서버를 실행합니다.

엔드포인트:
- GET /health                    서버 상태
- GET /api/v1/targets/{date}     날짜별 타깃 북
- GET /api/v1/scores/{date}      날짜별 블렌딩 점수 (즉석 계산)
- GET /api/v1/runs/{id}          백테스트 run 기록

Example:
  go run ./cmd/patterniq api serve
  PORT=9090 go run ./cmd/patterniq api serve`,
}

var apiServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작 (포그라운드)",
	RunE:  runAPIServe,
}

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.AddCommand(apiServeCmd)
}

func runAPIServe(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	query := handlers.NewQueryHandler(rt.store, rt.store, rt.orch, rt.instruments, rt.log)
	router := api.NewRouter(query, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("API server listening on :%s. Ctrl+C to stop.\n", rt.cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
