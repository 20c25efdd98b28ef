// Package catalog holds the static list of purchasable Stars offers. The
// catalog is fixed at process start and read-only afterwards.
package catalog

import "github.com/arthaus/photoshoot-bot/internal/models"

var starOffers = []models.StarOffer{
	{
		Code:        "photoshoot_1",
		Title:       "1 фотосессия",
		Description: "Одна фотосессия в любом стиле в 4K-качестве.",
		AmountStars: 100,
		Credits:     1,
	},
	{
		Code:        "photoshoot_5",
		Title:       "5 фотосессий",
		Description: "Пакет из пяти фотосессий по выгодной цене.",
		AmountStars: 450,
		Credits:     5,
	},
	{
		Code:        "photoshoot_10",
		Title:       "10 фотосессий",
		Description: "Максимальная выгода — 10 стильных фотосессий.",
		AmountStars: 800,
		Credits:     10,
	},
}

// Offers returns the full catalog in display order.
func Offers() []models.StarOffer {
	out := make([]models.StarOffer, len(starOffers))
	copy(out, starOffers)
	return out
}

// OfferByCode looks up an offer by its code.
func OfferByCode(code string) (models.StarOffer, bool) {
	for _, offer := range starOffers {
		if offer.Code == code {
			return offer, true
		}
	}
	return models.StarOffer{}, false
}
