package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffersAreWellFormed(t *testing.T) {
	offers := Offers()
	require.NotEmpty(t, offers)

	seen := make(map[string]bool)
	for _, offer := range offers {
		assert.NotEmpty(t, offer.Code)
		assert.NotEmpty(t, offer.Title)
		assert.Greater(t, offer.AmountStars, 0)
		assert.Greater(t, offer.Credits, 0)
		assert.False(t, seen[offer.Code], "duplicate offer code %s", offer.Code)
		seen[offer.Code] = true
	}
}

func TestOfferByCode(t *testing.T) {
	offer, ok := OfferByCode("photoshoot_5")
	require.True(t, ok)
	assert.Equal(t, 450, offer.AmountStars)
	assert.Equal(t, 5, offer.Credits)

	_, ok = OfferByCode("photoshoot_999")
	assert.False(t, ok)
}

func TestOffersReturnsCopy(t *testing.T) {
	offers := Offers()
	offers[0].AmountStars = 1

	fresh, ok := OfferByCode(offers[0].Code)
	require.True(t, ok)
	assert.NotEqual(t, 1, fresh.AmountStars)
}
