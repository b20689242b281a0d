package service_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/cache"
	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/Dan9191/bureau-scoring/internal/normalizer"
	"github.com/Dan9191/bureau-scoring/internal/rejection"
	"github.com/Dan9191/bureau-scoring/internal/scoring"
	"github.com/Dan9191/bureau-scoring/internal/service"
	mock_service "github.com/Dan9191/bureau-scoring/internal/service/mocks"
	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const badRatingPayload = `{
  "documento": "41234567",
  "nombre": "PEREZ, ANA",
  "fallecido": "N",
  "periodos": [
    {"fecha": "2024-06", "entidades": [
      {"entidad": "BANCO SANTANDER", "calificacion": "1A", "rubros": [{"rubro": "VIGENTE", "mn": 1000, "me": 0}]},
      {"entidad": "CREDITEL", "calificacion": "2B", "rubros": [{"rubro": "VENCIDO", "mn": "350.50", "me": 0}]}
    ]},
    {"fecha": "2023-12", "entidades": []}
  ]
}`

const deceasedPayload = `{"documento": "41234567", "nombre": "PEREZ, ANA", "fallecido": "S", "periodos": []}`

const cleanPayload = `{
  "subjectId": "41234567",
  "displayName": "Ana Perez",
  "periods": [
    {"date": "2024-06", "currentAmount": "local: 1000 foreign: 0", "institutions": [{"name": "Scotiabank", "rating": "1A"}]}
  ]
}`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func ok(body string) models.UpstreamOutcome {
	return models.UpstreamOutcome{StatusCode: http.StatusOK, Body: []byte(body)}
}

var request = cache.Request{SubjectID: "41234567", Provider: models.ProviderEquifax}

type fixture struct {
	fetcher *mock_service.MockFetcher
	scorer  *mock_service.MockScorer
	store   *cache.MemoryStore
	svc     *service.Service
}

func newFixture(t *testing.T, policy rejection.Policy) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		fetcher: mock_service.NewMockFetcher(ctrl),
		scorer:  mock_service.NewMockScorer(ctrl),
		store:   cache.NewMemoryStore(),
	}
	log := quietLogger()
	f.svc = service.NewService(
		f.fetcher,
		normalizer.NewNormalizer(log),
		rejection.NewEvaluator(policy),
		f.scorer,
		cache.New(f.store, time.Minute, log),
		log,
	)
	return f
}

func TestService_Score_BadRatingSkipsScorer(t *testing.T) {
	f := newFixture(t, rejection.DefaultPolicy())
	f.fetcher.EXPECT().Fetch(gomock.Any(), models.ProviderEquifax, "41234567", false).Return(ok(badRatingPayload)).Times(1)
	f.scorer.EXPECT().Score(gomock.Any()).Times(0)

	result, err := f.svc.Score(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result.Rejection)
	assert.Nil(t, result.Score)
	assert.Equal(t, models.RejectBadRating, result.Rejection.Code)
	assert.Equal(t, models.Rating2B, result.Rejection.Rating)
	assert.Equal(t, "PEREZ, ANA", result.Rejection.SubjectDisplayName)
	assert.NotEmpty(t, result.Metadata.RequestID)

	again, err := f.svc.Score(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, again.Metadata.FromCache, "business rejections are cached")
	assert.NotEqual(t, result.Metadata.RequestID, again.Metadata.RequestID)
}

func TestService_Score_BadRatingBesideWorseUnlistedRating(t *testing.T) {
	payload := `{"documento": "41234567", "nombre": "PEREZ, ANA", "periodos": [
	  {"fecha": "2024-06", "entidades": [
	    {"entidad": "CREDITEL", "calificacion": "2B", "rubros": [{"rubro": "VENCIDO", "mn": 120, "me": 0}]},
	    {"entidad": "OCA", "calificacion": "2C", "rubros": [{"rubro": "VIGENTE", "mn": 80, "me": 0}]}
	  ]}
	]}`
	f := newFixture(t, rejection.DefaultPolicy())
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ok(payload))
	f.scorer.EXPECT().Score(gomock.Any()).Times(0)

	result, err := f.svc.Score(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result.Rejection)
	assert.Equal(t, models.RejectBadRating, result.Rejection.Code)
	assert.Equal(t, models.Rating2B, result.Rejection.Rating)
}

func TestService_Score_TransportErrorIsNotCached(t *testing.T) {
	f := newFixture(t, rejection.DefaultPolicy())
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.UpstreamOutcome{StatusCode: http.StatusServiceUnavailable, Body: []byte(`{"message":"registry offline"}`)}).
		Times(2)
	f.scorer.EXPECT().Score(gomock.Any()).Times(0)

	for i := 0; i < 2; i++ {
		result, err := f.svc.Score(context.Background(), request)
		require.NoError(t, err)
		require.NotNil(t, result.Rejection)
		assert.Equal(t, models.RejectTransportError, result.Rejection.Code)
		assert.Equal(t, http.StatusServiceUnavailable, result.Rejection.Status)
		assert.Equal(t, "registry offline", result.Rejection.Detail)
		assert.False(t, result.Metadata.FromCache)
	}
}

func TestService_Score_PanicBecomesInternalFailure(t *testing.T) {
	f := newFixture(t, rejection.DefaultPolicy())
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ok(cleanPayload)).Times(1)
	f.scorer.EXPECT().Score(gomock.Any()).DoAndReturn(func(*models.NormalizedCreditReport) *models.ScoreResult {
		panic("index out of range")
	})

	result, err := f.svc.Score(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result.Score)
	assert.Equal(t, 0, *result.Score)
	require.NotNil(t, result.Rejection)
	assert.Equal(t, models.RejectInternalFailure, result.Rejection.Code)
	assert.Equal(t, 0, f.store.Len(), "internal failures are not cached")
}

func TestService_Score_NormalizationError(t *testing.T) {
	f := newFixture(t, rejection.DefaultPolicy())
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ok(`{"unexpected": true}`))
	f.scorer.EXPECT().Score(gomock.Any()).Times(0)

	result, err := f.svc.Score(context.Background(), request)
	assert.Nil(t, result)
	var nerr *normalizer.NormalizationError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "payload", nerr.Field)
	assert.Equal(t, 0, f.store.Len())
}

func TestService_Score_FeaturesOnlyWithDebug(t *testing.T) {
	f := newFixture(t, rejection.DefaultPolicy())
	engine := scoring.NewEngine(scoring.SampleCoefficients(), quietLogger())
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ok(cleanPayload)).Times(1)
	f.scorer.EXPECT().Score(gomock.Any()).DoAndReturn(engine.Score).Times(1)

	plain, err := f.svc.Score(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, plain.Score)
	assert.Nil(t, plain.Rejection)
	assert.Nil(t, plain.Metadata.Features)
	assert.Equal(t, []string{service.QualitySynthesized, service.QualityHistoricalMissing}, plain.Metadata.DataQuality)
	assert.Equal(t, "41234567", plain.Metadata.SubjectID)

	debugReq := request
	debugReq.Debug = true
	detailed, err := f.svc.Score(context.Background(), debugReq)
	require.NoError(t, err)
	assert.True(t, detailed.Metadata.FromCache)
	assert.Len(t, detailed.Metadata.Features, 17)
	assert.Equal(t, *plain.Score, *detailed.Score)
}

func TestService_Score_DeceasedPolicies(t *testing.T) {
	t.Run("reject", func(t *testing.T) {
		f := newFixture(t, rejection.DefaultPolicy())
		f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ok(deceasedPayload))
		f.scorer.EXPECT().Score(gomock.Any()).Times(0)

		result, err := f.svc.Score(context.Background(), request)
		require.NoError(t, err)
		require.NotNil(t, result.Rejection)
		assert.Equal(t, models.RejectDeceased, result.Rejection.Code)
	})

	t.Run("annotate", func(t *testing.T) {
		f := newFixture(t, rejection.Policy{Deceased: rejection.DeceasedAnnotate})
		engine := scoring.NewEngine(scoring.SampleCoefficients(), quietLogger())
		f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ok(deceasedPayload))
		f.scorer.EXPECT().Score(gomock.Any()).DoAndReturn(engine.Score).Times(1)

		result, err := f.svc.Score(context.Background(), request)
		require.NoError(t, err)
		require.NotNil(t, result.Score)
		assert.Equal(t, 789, *result.Score)
		assert.Contains(t, result.Metadata.DataQuality, service.QualityDeceased)
	})
}

func TestService_Evaluate_WithoutCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	rules := mock_service.NewMockRuleEvaluator(ctrl)
	norm := mock_service.NewMockNormalizer(ctrl)
	scorer := mock_service.NewMockScorer(ctrl)

	report := &models.NormalizedCreditReport{SubjectID: "41234567"}
	score := 640
	outcome := ok("{}")

	rules.EXPECT().EvaluateTransport(outcome).Return(nil)
	norm.EXPECT().Normalize(models.ProviderBCU, outcome.Body).Return(report, nil)
	rules.EXPECT().Evaluate(report).Return(nil)
	scorer.EXPECT().Score(report).Return(&models.ScoreResult{Score: &score})

	svc := service.NewService(nil, norm, rules, scorer, nil, quietLogger())
	result, err := svc.Evaluate(models.ProviderBCU, "", outcome)
	require.NoError(t, err)
	assert.Equal(t, 640, *result.Score)
	assert.Equal(t, "41234567", result.Metadata.SubjectID, "subject comes from the payload")
	assert.Equal(t, models.ProviderBCU, result.Metadata.Provider)
	assert.False(t, result.Metadata.ComputedAt.IsZero())
}
