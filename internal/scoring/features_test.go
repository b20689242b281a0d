package scoring

import (
	"testing"

	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/stretchr/testify/assert"
)

func featureValue(t *testing.T, r *models.NormalizedCreditReport, name string) float64 {
	t.Helper()
	for _, v := range ResolveFeatures(r) {
		if v.Name == name {
			return v.Bin
		}
	}
	t.Fatalf("feature %s not found", name)
	return 0
}

func entity(name string, rating models.Rating) models.Entity {
	return models.Entity{Name: name, Rating: rating}
}

func TestFeatureNames_MatchCoefficients(t *testing.T) {
	names := FeatureNames()
	assert.Len(t, names, 17)
	assert.Equal(t, "hist_entity_count", names[0])
	assert.Equal(t, "consumer_finance_rating", names[16])

	weights := SampleCoefficients().Weights()
	for _, n := range names {
		_, ok := weights[n]
		assert.True(t, ok, n)
	}
}

func TestFeatures_LockOnceDependsOnOrder(t *testing.T) {
	first := reportWith([]models.Entity{
		entity("SCOTIABANK", models.Rating1C),
		entity("SCOTIABANK URUGUAY", models.Rating1A),
	}, nil)
	assert.Equal(t, 0.5, featureValue(t, first, "scotia_rating"))

	reversed := reportWith([]models.Entity{
		entity("SCOTIABANK URUGUAY", models.Rating1A),
		entity("SCOTIABANK", models.Rating1C),
	}, nil)
	assert.Equal(t, 1.0, featureValue(t, reversed, "scotia_rating"))
}

func TestFeatures_LastMatchWins(t *testing.T) {
	r := reportWith([]models.Entity{
		entity("BROU", models.Rating1A),
		entity("BANCO REPUBLICA ORIENTAL", models.Rating3),
	}, nil)
	assert.Equal(t, -1.0, featureValue(t, r, "brou_rating"))

	r = reportWith([]models.Entity{
		entity("BANCO REPUBLICA ORIENTAL", models.Rating3),
		entity("BROU", models.Rating1A),
	}, nil)
	assert.Equal(t, 2.0, featureValue(t, r, "brou_rating"))
}

func TestFeatures_HistRatingQuality(t *testing.T) {
	tests := []struct {
		name       string
		historical []models.Entity
		want       float64
	}{
		{name: "no entities keeps baseline", want: 0.5},
		{name: "unranked only keeps baseline", historical: []models.Entity{entity("HSBC", models.RatingNotClassified)}, want: 0.5},
		{name: "first ranked is good", historical: []models.Entity{entity("HSBC", models.RatingZero), entity("BBVA", models.Rating1B), entity("OCA", models.Rating4)}, want: 1},
		{name: "first ranked is middling", historical: []models.Entity{entity("HSBC", models.Rating2A)}, want: 0},
		{name: "first ranked is bad", historical: []models.Entity{entity("HSBC", models.Rating2C), entity("BBVA", models.Rating1A)}, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reportWith(nil, tt.historical)
			assert.Equal(t, tt.want, featureValue(t, r, "hist_rating_quality"))
		})
	}
}

func TestFeatures_RecentWorstRating(t *testing.T) {
	tests := []struct {
		ratings []models.Rating
		want    float64
	}{
		{ratings: nil, want: 0},
		{ratings: []models.Rating{models.Rating1A}, want: 0},
		{ratings: []models.Rating{models.Rating1A, models.Rating1C}, want: 1},
		{ratings: []models.Rating{models.Rating2A, models.Rating1B}, want: 2},
		{ratings: []models.Rating{models.Rating2C}, want: 3},
		{ratings: []models.Rating{models.RatingNotClassified}, want: 0},
	}
	for _, tt := range tests {
		var recent []models.Entity
		for _, r := range tt.ratings {
			recent = append(recent, entity("HSBC", r))
		}
		assert.Equal(t, tt.want, featureValue(t, reportWith(recent, nil), "recent_worst_rating"), "%v", tt.ratings)
	}
}

func TestFeatures_NewEntities(t *testing.T) {
	recent := []models.Entity{entity("HSBC", models.Rating1A), entity("BBVA", models.Rating1A), entity("OCA", models.Rating1A)}

	r := reportWith(recent, []models.Entity{entity("hsbc ", models.Rating1A)})
	assert.Equal(t, 2.0, featureValue(t, r, "new_entities"))

	r = reportWith(recent, nil)
	r.Periods.Historical = models.UnavailablePeriod(models.PeriodMissing)
	assert.Equal(t, 0.0, featureValue(t, r, "new_entities"))
}

func TestFeatures_Amounts(t *testing.T) {
	recent := []models.Entity{
		{Name: "ITAU", Rating: models.Rating1B, Current: models.Money{Local: 40000}},
		{Name: "SANTANDER", Rating: models.Rating1A, Current: models.Money{Local: 150000, Foreign: 1}, Overdue: models.Money{Local: 5}},
		{Name: "CABAL", Rating: models.Rating1A},
	}
	historical := []models.Entity{
		{Name: "FUCAC", Rating: models.Rating1A, ChargedOff: models.Money{Foreign: 3},
			Categories: []models.Category{{Kind: models.CategoryContingent, Amounts: models.Money{Local: 1}}}},
	}
	r := reportWith(recent, historical)

	assert.Equal(t, 2.0, featureValue(t, r, "indebtedness_tier"), "last tier-one entity wins")
	assert.Equal(t, 1.0, featureValue(t, r, "recent_overdue"))
	assert.Equal(t, 1.0, featureValue(t, r, "foreign_debt"))
	assert.Equal(t, 1.0, featureValue(t, r, "hist_charged_off"))
	assert.Equal(t, 1.0, featureValue(t, r, "coop_contingent"), "cooperatives are scanned in both periods")
	assert.Equal(t, 1.0, featureValue(t, r, "card_issuer"))
	assert.Equal(t, 1.0, featureValue(t, r, "tier_one_bank"))
	assert.Equal(t, 1.0, featureValue(t, r, "santander_rating"))
	assert.Equal(t, 2.0, featureValue(t, r, "recent_entity_count"))
}

func TestFeatures_ConsumerFinance(t *testing.T) {
	r := reportWith([]models.Entity{
		entity("CREDITEL", models.Rating1A),
		entity("PRONTO!", models.Rating2B),
	}, nil)
	assert.Equal(t, 2.0, featureValue(t, r, "consumer_finance_count"))
	assert.Equal(t, -1.0, featureValue(t, r, "consumer_finance_rating"))
}

func TestCountBuckets(t *testing.T) {
	for n, want := range map[int]float64{0: 0, 1: 1, 2: 2, 3: 2, 4: 3, 9: 3} {
		assert.Equal(t, want, countBucket(n), "countBucket(%d)", n)
	}
	for n, want := range map[int]float64{0: 0, 1: 1, 2: 2, 7: 2} {
		assert.Equal(t, want, smallCountBucket(n), "smallCountBucket(%d)", n)
	}
}

func TestLookupInstitution(t *testing.T) {
	m := LookupInstitution("Banco de la Republica Oriental del Uruguay")
	assert.True(t, m.Is("brou"))
	assert.True(t, m.Has(TagState))
	assert.True(t, m.Has(TagTierOne))

	m = LookupInstitution("Banco Itaú Uruguay")
	assert.True(t, m.Is("itau"))

	m = LookupInstitution("Financiera Desconocida")
	assert.Empty(t, m.Keys)
	assert.False(t, m.Has(TagBank))
}
