package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/patterniq/internal/contracts"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "CSV 시세/일정 적재",
	Long: `일별 바와 실적 발표 일정을 CSV에서 적재합니다.

bars CSV 컬럼:
  code,date,open,high,low,close,volume,adj_open,adj_high,adj_low,adj_close
earnings CSV 컬럼:
  code,date

같은 (code, date) 키는 덮어써서 재적재에 안전합니다.

Example:
  go run ./cmd/patterniq ingest bars --file bars.csv
  go run ./cmd/patterniq ingest earnings --file events.csv`,
}

var (
	ingestBarsCmd = &cobra.Command{
		Use:   "bars",
		Short: "일별 바 적재",
		RunE:  runIngestBars,
	}
	ingestEarningsCmd = &cobra.Command{
		Use:   "earnings",
		Short: "실적 발표 일정 적재",
		RunE:  runIngestEarnings,
	}

	// Flags
	ingestFile string
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestBarsCmd)
	ingestCmd.AddCommand(ingestEarningsCmd)

	ingestCmd.PersistentFlags().StringVar(&ingestFile, "file", "", "CSV 파일 경로 (필수)")
	_ = ingestCmd.MarkPersistentFlagRequired("file")
}

func runIngestBars(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	bars, err := readBarsCSV(ingestFile)
	if err != nil {
		return err
	}

	if err := rt.source.SaveBars(cmd.Context(), bars); err != nil {
		return fmt.Errorf("failed to save bars: %w", err)
	}

	fmt.Printf("Ingested %d bars from %s\n", len(bars), ingestFile)
	return nil
}

func runIngestEarnings(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := readEarningsCSV(ingestFile)
	if err != nil {
		return err
	}

	if err := rt.calendar.SaveEvents(cmd.Context(), events); err != nil {
		return fmt.Errorf("failed to save earnings events: %w", err)
	}

	fmt.Printf("Ingested %d earnings events from %s\n", len(events), ingestFile)
	return nil
}

func readBarsCSV(path string) ([]contracts.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) != 11 {
		return nil, fmt.Errorf("bars CSV needs 11 columns, got %d", len(header))
	}

	var bars []contracts.PriceBar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse("2006-01-02", record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, record[1])
		}
		values := make([]float64, 0, 9)
		for _, col := range []int{2, 3, 4, 5, 7, 8, 9, 10} {
			v, err := strconv.ParseFloat(record[col], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q", line, record[col])
			}
			values = append(values, v)
		}
		volume, err := strconv.ParseInt(record[6], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid volume %q", line, record[6])
		}

		bars = append(bars, contracts.PriceBar{
			Code: record[0], Date: date,
			Open: values[0], High: values[1], Low: values[2], Close: values[3],
			Volume:  volume,
			AdjOpen: values[4], AdjHigh: values[5], AdjLow: values[6], AdjClose: values[7],
		})
	}
	return bars, nil
}

func readEarningsCSV(path string) ([]contracts.EarningsEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var events []contracts.EarningsEvent
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := time.Parse("2006-01-02", record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, record[1])
		}
		events = append(events, contracts.EarningsEvent{Code: record[0], Date: date})
	}
	return events, nil
}
