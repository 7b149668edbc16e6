package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

func sample(id string) []domain.NormalizedMarket {
	return []domain.NormalizedMarket{{Venue: "polymarket", ID: id, Title: "BTC 100K EOY?"}}
}

func TestCache_HitWithinTTL(t *testing.T) {
	c := NewMarkets(30 * time.Second)

	c.Put("polymarket:bitcoin", sample("m1"))
	got, ok := c.Get("polymarket:bitcoin")
	require.True(t, ok)
	assert.Equal(t, "m1", got[0].ID)
}

func TestCache_MissAfterExpiry(t *testing.T) {
	c := NewMarkets(30 * time.Second)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Put("k", sample("m1"))

	c.now = func() time.Time { return base.Add(29 * time.Second) }
	_, ok := c.Get("k")
	assert.True(t, ok)

	c.now = func() time.Time { return base.Add(31 * time.Second) }
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "la entrada expirada se elimina al leer")
}

func TestCache_DisabledWithZeroTTL(t *testing.T) {
	c := NewMarkets(0)

	c.Put("k", sample("m1"))
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Purge(t *testing.T) {
	c := NewMarkets(30 * time.Second)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Put("old", sample("m1"))
	c.now = func() time.Time { return base.Add(time.Minute) }
	c.Put("fresh", sample("m2"))

	c.Purge()
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestCache_OverwriteRefreshes(t *testing.T) {
	c := NewMarkets(30 * time.Second)

	c.Put("k", sample("m1"))
	c.Put("k", sample("m2"))

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0].ID)
}
