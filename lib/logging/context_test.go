package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestWithFields(t *testing.T) {
	buf := new(bytes.Buffer)
	ctx := zerolog.New(buf).WithContext(context.Background())

	ctx = WithFields(ctx, map[string]string{FieldSubject: "user-1"})
	ctx = WithFields(ctx, map[string]string{FieldRole: "patient"})
	log.Ctx(ctx).Info().Msg("hello")

	require.Contains(t, buf.String(), `"subject":"user-1"`)
	require.Contains(t, buf.String(), `"role":"patient"`)
	require.Contains(t, buf.String(), `"message":"hello"`)
}

func TestWithTrace(t *testing.T) {
	t.Run("no active span", func(t *testing.T) {
		ctx := context.Background()
		require.Equal(t, ctx, WithTrace(ctx))
	})
}
