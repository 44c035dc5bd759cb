package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Режимы запуска для метки mode.
const (
	ModeSync       = "sync"
	ModeBackground = "background"
)

var (
	// RunsTotal — количество завершённых запусков по режиму и результату.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_runs_total",
		Help: "Total pipeline runs by trigger mode and result",
	}, []string{"mode", "result"})

	// StageDuration — длительность выполнения stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conveyor_stage_duration_seconds",
		Help:    "Stage process duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"stage", "result"})

	// VerifyMissingTotal — попытки проверки, на которых не хватало artifacts.
	VerifyMissingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_verify_missing_total",
		Help: "Verification attempts that found missing artifacts",
	})

	// SweptFilesTotal — файлы, удалённые при очистке.
	SweptFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_swept_files_total",
		Help: "Files deleted by the cleanup sweep",
	})

	// HTTPRequestsTotal — HTTP-запросы к API.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_http_requests_total",
		Help: "Total HTTP requests handled by conveyor-api",
	}, []string{"method", "status"})

	runState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "conveyor_run_state",
		Help: "Current run state marker (1 for the active state)",
	}, []string{"state"})
)

// ObserveRunState выставляет 1 для текущего состояния и 0 для остальных.
func ObserveRunState(current domain.RunState) {
	for _, s := range domain.AllRunStates {
		v := 0.0
		if s == current {
			v = 1
		}
		runState.WithLabelValues(string(s)).Set(v)
	}
}

// ResultLabel возвращает значение метки result.
func ResultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
