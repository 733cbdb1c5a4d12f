package property

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pandodao/safe-pay/store/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyStore(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "properties.db"))
	require.NoError(t, err)
	defer conn.Close()

	properties := New(conn)

	offset := uint64(7)
	require.NoError(t, properties.Get(ctx, "offset", &offset))
	assert.EqualValues(t, 7, offset, "missing key leaves value untouched")

	require.NoError(t, properties.Set(ctx, "offset", 42))
	require.NoError(t, properties.Get(ctx, "offset", &offset))
	assert.EqualValues(t, 42, offset)

	require.NoError(t, properties.Set(ctx, "offset", 43))
	require.NoError(t, properties.Get(ctx, "offset", &offset))
	assert.EqualValues(t, 43, offset)
}
