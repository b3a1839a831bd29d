package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitWithoutTracesIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "stakerd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer x ,bad, =skip,tenant=a")
	require.Equal(t, map[string]string{"authorization": "Bearer x", "tenant": "a"}, headers)
}
