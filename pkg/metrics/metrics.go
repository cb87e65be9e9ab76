package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 校验结果标签
const (
	OutcomeValid    = "valid"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeProbed   = "probed"
)

// Registry 校验与契约相关的指标
type Registry struct {
	// 校验指标
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec
	ViolationsTotal    *prometheus.CounterVec

	// Guard 指标
	GuardCallsTotal   *prometheus.CounterVec
	GuardCallDuration *prometheus.HistogramVec

	registry *prometheus.Registry
	mu       sync.Mutex
	gauges   map[string]prometheus.Collector
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry 全局指标注册表（单例）
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry 创建独立的指标注册表
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Collector),
	}
	r.initValidationMetrics()
	r.initGuardMetrics()
	return r
}

func (r *Registry) initValidationMetrics() {
	r.ValidationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_validations_total",
			Help: "Total number of object validations",
		},
		[]string{"type", "outcome"},
	)

	r.ValidationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contract_validation_duration_seconds",
			Help:    "Object validation duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0},
		},
		[]string{"type"},
	)

	r.ViolationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_violations_total",
			Help: "Total number of constraint violations by check",
		},
		[]string{"check"},
	)
}

func (r *Registry) initGuardMetrics() {
	r.GuardCallsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_guard_calls_total",
			Help: "Total number of guarded method calls",
		},
		[]string{"method", "outcome"},
	)

	r.GuardCallDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contract_guard_call_duration_seconds",
			Help:    "Guarded method call duration in seconds, including contract checks",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0, 10.0},
		},
		[]string{"method"},
	)
}

// RecordValidation 记录一次对象校验
func (r *Registry) RecordValidation(typeName, outcome string, duration time.Duration) {
	r.ValidationsTotal.WithLabelValues(typeName, outcome).Inc()
	r.ValidationDuration.WithLabelValues(typeName).Observe(duration.Seconds())
}

// RecordViolation 记录一次约束违反
func (r *Registry) RecordViolation(check string) {
	r.ViolationsTotal.WithLabelValues(check).Inc()
}

// RecordGuardCall 记录一次被守护的调用
func (r *Registry) RecordGuardCall(method, outcome string, duration time.Duration) {
	r.GuardCallsTotal.WithLabelValues(method, outcome).Inc()
	r.GuardCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RegisterGaugeFunc 注册按需求值的 gauge（如类型缓存大小），同名重复注册时替换
func (r *Registry) RegisterGaugeFunc(name, help string, fn func() float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.gauges[name]; ok {
		r.registry.Unregister(existing)
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
	if err := r.registry.Register(g); err != nil {
		return err
	}
	r.gauges[name] = g
	return nil
}

// Gatherer 返回底层注册表，供测试和自定义导出使用
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler 返回 /metrics HTTP 处理器
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
