package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the quantitative core.
// ⭐ SSOT: 파이프라인 공통 에러 분류는 여기서만 정의
//
// DataGap              — 피처/시그널 레벨에서는 생략으로 복구, 백테스트 보유 종목이면 치명적
// InsufficientHistory  — 문서화된 폴백으로 복구, 절대 크래시하지 않음
// ConstraintInfeasible — 초과분 0 처리 후 로깅으로 해소
// CausalityViolation   — 항상 치명적, 복구 불가 (결함으로 즉시 표면화)

// DataGapError indicates a missing price or feature input for a required date
type DataGapError struct {
	Code string
	Date time.Time
	What string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap: %s missing for %s on %s", e.What, e.Code, e.Date.Format("2006-01-02"))
}

// InsufficientHistoryError indicates a lookback window below its minimum
type InsufficientHistoryError struct {
	What string
	Have int
	Need int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: %s has %d observations, need %d", e.What, e.Have, e.Need)
}

// ConstraintInfeasibleError indicates caps that cannot all be satisfied
type ConstraintInfeasibleError struct {
	Code string
	Cap  float64
	Min  float64
}

func (e *ConstraintInfeasibleError) Error() string {
	return fmt.Sprintf("constraint infeasible: %s cap %.4f below minimum tradable weight %.4f", e.Code, e.Cap, e.Min)
}

// CausalityViolationError indicates a computation for date d that referenced
// data dated on or after d
type CausalityViolationError struct {
	Computation string
	Date        time.Time
	Referenced  time.Time
}

func (e *CausalityViolationError) Error() string {
	return fmt.Sprintf("causality violation: %s for %s referenced data realized at %s",
		e.Computation, e.Date.Format("2006-01-02"), e.Referenced.Format("2006-01-02"))
}

// IsDataGap reports whether err wraps a DataGapError
func IsDataGap(err error) bool {
	var e *DataGapError
	return errors.As(err, &e)
}

// IsCausalityViolation reports whether err wraps a CausalityViolationError
func IsCausalityViolation(err error) bool {
	var e *CausalityViolationError
	return errors.As(err, &e)
}
