package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katydid-common-contract/pkg/guard"
	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/check"
)

type address struct {
	City string `check:"notblank"`
}

type profile struct {
	Name    string   `check:"notblank"`
	Address *address `check:"valid"`
}

type wallet struct {
	Balance int `check:"notnegative"`
}

func TestDefaultRegistry(t *testing.T) {
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
}

func TestRecordValidation(t *testing.T) {
	r := NewRegistry()
	r.RecordValidation("user", OutcomeValid, 10*time.Millisecond)
	r.RecordValidation("user", OutcomeValid, 20*time.Millisecond)
	r.RecordValidation("user", OutcomeInvalid, time.Millisecond)

	counter, err := r.ValidationsTotal.GetMetricWithLabelValues("user", OutcomeValid)
	require.NoError(t, err)
	var metric dto.Metric
	require.NoError(t, counter.Write(&metric))
	assert.Equal(t, float64(2), metric.Counter.GetValue())

	assert.Equal(t, 1, testutil.CollectAndCount(r.ValidationDuration))
}

func TestValidationListener(t *testing.T) {
	r := NewRegistry()
	v := validator.MustNew(validator.WithListeners(NewValidationListener(r)))
	require.NoError(t, r.InstrumentTypeCache(v))

	_, err := v.Validate(&profile{Name: "x", Address: &address{City: "Paris"}})
	require.NoError(t, err)
	_, err = v.Validate(&profile{Address: &address{}})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.ValidationsTotal.WithLabelValues("profile", OutcomeValid)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.ValidationsTotal.WithLabelValues("profile", OutcomeInvalid)))
	// Name 与 Address.City 的 notblank，以及包装它们的 valid
	assert.Equal(t, float64(2), testutil.ToFloat64(r.ViolationsTotal.WithLabelValues("notblank")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.ViolationsTotal.WithLabelValues("valid")))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	var cacheSize float64
	for _, f := range families {
		if f.GetName() == "contract_type_cache_entries" {
			cacheSize = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(2), cacheSize)
	require.NoError(t, r.InstrumentTypeCache(v), "重复注册时替换")
}

func TestGuardInterceptor(t *testing.T) {
	r := NewRegistry()
	g := guard.New(validator.MustNew(), guard.WithInterceptors(GuardInterceptor(r)))
	spend := guard.NewMethod((*wallet)(nil), "Spend", "amount").Param(0, check.NewNotNegative())
	w := &wallet{Balance: 5}

	call := func(amount int) error {
		_, err := g.Invoke(context.Background(), w, spend, []any{amount}, func() (any, error) {
			w.Balance -= amount
			return nil, nil
		})
		return err
	}

	require.NoError(t, call(1))
	require.Error(t, call(-1))
	_, err := g.EnableProbeMode(w)
	require.NoError(t, err)
	require.NoError(t, call(1))

	method := spend.String()
	assert.Equal(t, float64(1), testutil.ToFloat64(r.GuardCallsTotal.WithLabelValues(method, OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.GuardCallsTotal.WithLabelValues(method, OutcomeRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.GuardCallsTotal.WithLabelValues(method, OutcomeProbed)))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordViolation("notnull")

	server := httptest.NewServer(r.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `contract_violations_total{check="notnull"} 1`))
}
