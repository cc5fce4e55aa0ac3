// Package metrics exposes pipeline counters for prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"private-stake-go/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	OutcomeOk     = "ok"
	OutcomeFailed = "failed"

	PathPrivate  = "private"
	PathPublic   = "public"
	PathStranded = "stranded"
)

// Recorder counts stage outcomes, recovery paths and operation latency.
// A nil *Recorder records nothing.
type Recorder struct {
	stages     *prometheus.CounterVec
	recoveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	stages, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "privstake_stage_total",
		Help: "Pipeline stages run, by direction, stage and outcome.",
	}, []string{"direction", "stage", "outcome"}))
	if err != nil {
		return nil, err
	}
	recoveries, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "privstake_recovery_total",
		Help: "Burner balances handled by the recovery layer, by path taken.",
	}, []string{"path"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "privstake_operation_seconds",
		Help:    "Wall time of stake and unstake operations.",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
	}, []string{"direction", "status"}))
	if err != nil {
		return nil, err
	}
	return &Recorder{stages: stages, recoveries: recoveries, duration: duration}, nil
}

// register reuses a collector already registered under the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func (r *Recorder) Stage(direction models.Direction, stage models.Status, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeOk
	if err != nil {
		outcome = OutcomeFailed
	}
	r.stages.WithLabelValues(direction.String(), string(stage), outcome).Inc()
}

func (r *Recorder) Recovery(path string) {
	if r == nil {
		return
	}
	r.recoveries.WithLabelValues(path).Inc()
}

func (r *Recorder) Operation(direction models.Direction, status models.Status, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(direction.String(), string(status)).Observe(elapsed.Seconds())
}

// Serve exposes the default gatherer on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}()

	zap.L().Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
