package sql

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapDriver(t *testing.T) {
	type args struct {
		opts []Option
	}

	tests := []struct {
		name string
		args args
	}{
		{
			name: "given driver with options, then returns wrapped driver",
			args: args{opts: []Option{WithDBSystem("postgresql")}},
		},
		{
			name: "given driver without options, then returns wrapped driver",
			args: args{opts: nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDriver{conn: newFakeConn()}

			wrapped := WrapDriver(fake, tt.args.opts...)

			require.NotNil(t, wrapped)
			assert.Implements(t, (*driver.Driver)(nil), wrapped)
		})
	}
}

func TestTracingDriver_Open(t *testing.T) {
	type args struct {
		dsn     string
		openErr error
	}

	tests := []struct {
		name    string
		args    args
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "given successful open, then returns wrapped connection",
			args: args{
				dsn:     "test-dsn",
				openErr: nil,
			},
			wantErr: assert.NoError,
		},
		{
			name: "given error on open, then returns error",
			args: args{
				dsn:     "test-dsn",
				openErr: assert.AnError,
			},
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDriver{conn: newFakeConn(), openErr: tt.args.openErr}
			cfg := newConfig(WithDBSystem("postgresql"))
			drv := &tracingDriver{driver: fake, cfg: cfg}

			conn, err := drv.Open(tt.args.dsn)

			tt.wantErr(t, err)
			if err == nil {
				require.NotNil(t, conn)
				assert.IsType(t, &tracingConn{}, conn)
			} else {
				assert.ErrorIs(t, err, tt.args.openErr)
			}
		})
	}
}

func TestTracingDriver_OpenConnector(t *testing.T) {
	t.Run("given driver without DriverContext, then returns dsnConnector", func(t *testing.T) {
		fake := &fakeDriver{conn: newFakeConn()}
		cfg := newConfig(WithDBSystem("postgresql"))
		drv := &tracingDriver{driver: fake, cfg: cfg}

		connector, err := drv.OpenConnector("test-dsn")

		require.NoError(t, err)
		require.NotNil(t, connector)
		assert.IsType(t, &dsnConnector{}, connector)
	})
}

func TestDsnConnector_Connect(t *testing.T) {
	type args struct {
		dsn     string
		openErr error
	}

	tests := []struct {
		name    string
		args    args
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "given valid dsn, then returns wrapped connection",
			args: args{
				dsn:     "test-dsn",
				openErr: nil,
			},
			wantErr: assert.NoError,
		},
		{
			name: "given error on connect, then returns error",
			args: args{
				dsn:     "test-dsn",
				openErr: assert.AnError,
			},
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDriver{conn: newFakeConn(), openErr: tt.args.openErr}
			cfg := newConfig(WithDBSystem("postgresql"))
			drv := &tracingDriver{driver: fake, cfg: cfg}
			connector := &dsnConnector{dsn: tt.args.dsn, driver: drv}

			ctx := context.TODO()
			conn, err := connector.Connect(ctx)

			tt.wantErr(t, err)
			if err == nil {
				require.NotNil(t, conn)
				assert.IsType(t, &tracingConn{}, conn)
			} else {
				assert.Nil(t, conn)
			}
		})
	}
}

func TestDsnConnector_Driver(t *testing.T) {
	t.Run("returns parent tracingDriver", func(t *testing.T) {
		fake := &fakeDriver{conn: newFakeConn()}
		cfg := newConfig()
		drv := &tracingDriver{driver: fake, cfg: cfg}

		connector := &dsnConnector{dsn: "test", driver: drv}

		got := connector.Driver()

		assert.Equal(t, drv, got)
	})
}

func TestRegister(t *testing.T) {
	t.Run("given wrapped driver, then sql.Open yields instrumented connections", func(t *testing.T) {
		fake := &fakeDriver{conn: newFakeConn()}

		Register("dbtrace-register-test", fake, WithDBSystem("postgresql"))

		drv := &tracingDriver{driver: fake, cfg: newConfig()}
		conn, err := drv.Open("ignored")
		require.NoError(t, err)
		assert.IsType(t, &tracingConn{}, conn)
	})
}
