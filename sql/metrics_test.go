package sql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetrics(t *testing.T) {
	t.Run("given valid meter, then creates metrics successfully", func(t *testing.T) {
		mp := sdkmetric.NewMeterProvider()
		defer mp.Shutdown(context.Background())

		m, err := newMetrics(mp.Meter("test"))

		require.NoError(t, err)
		require.NotNil(t, m)
		assert.NotNil(t, m.queryDuration)
	})
}

func TestRecordQueryDuration(t *testing.T) {
	type args struct {
		duration  time.Duration
		operation string
		attrs     []attribute.KeyValue
		err       error
	}

	tests := []struct {
		name string
		args args
	}{
		{
			name: "given successful query, then records with ok status",
			args: args{
				duration:  100 * time.Millisecond,
				operation: "SELECT",
				attrs: []attribute.KeyValue{
					attribute.String("dependency.type", "postgresql"),
				},
				err: nil,
			},
		},
		{
			name: "given failed query, then records with error status",
			args: args{
				duration:  50 * time.Millisecond,
				operation: "INSERT",
				attrs: []attribute.KeyValue{
					attribute.String("dependency.type", "mysql"),
				},
				err: assert.AnError,
			},
		},
		{
			name: "given empty operation, then records without operation attribute",
			args: args{
				duration:  10 * time.Millisecond,
				operation: "",
				attrs:     []attribute.KeyValue{},
				err:       nil,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := sdkmetric.NewManualReader()
			mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
			defer mp.Shutdown(context.Background())

			m, err := newMetrics(mp.Meter("test"))
			require.NoError(t, err)

			ctx := context.Background()
			m.recordQueryDuration(ctx, tt.args.duration, tt.args.operation, tt.args.attrs, tt.args.err)

			var rm metricdata.ResourceMetrics
			err = reader.Collect(ctx, &rm)
			require.NoError(t, err)
			assert.NotEmpty(t, rm.ScopeMetrics)
		})
	}
}

func TestRecordPoolMetrics(t *testing.T) {
	t.Run("given database handle, then pool gauges are observable", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer mp.Shutdown(context.Background())

		err = RecordPoolMetrics(db, mp.Meter("test"))
		require.NoError(t, err)

		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)
		require.NotEmpty(t, rm.ScopeMetrics)
		assert.NotEmpty(t, rm.ScopeMetrics[0].Metrics)
	})
}

func TestRecordQueryDuration_NilMetrics(t *testing.T) {
	t.Run("given nil metrics, then does not panic", func(t *testing.T) {
		var m *metrics

		assert.NotPanics(t, func() {
			m.recordQueryDuration(context.Background(), time.Second, "SELECT", nil, nil)
		})
	})
}

func TestRecordQueryDuration_NilHistogram(t *testing.T) {
	t.Run("given nil histogram, then does not panic", func(t *testing.T) {
		m := &metrics{queryDuration: nil}

		assert.NotPanics(t, func() {
			m.recordQueryDuration(context.Background(), time.Second, "SELECT", nil, nil)
		})
	})
}
