package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenRating struct {
	ID     uint    `json:"id"`
	Symbol string  `json:"symbol"`
	Elo    float64 `json:"elo"`
	Games  int     `json:"games"`
}

func TestHealthEndpoint(t *testing.T) {
	requireAPI(t)

	resp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRatingsEndpoint(t *testing.T) {
	requireAPI(t)

	t.Run("List Ratings", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/ratings?limit=10")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var ratings []tokenRating
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ratings))
		assert.LessOrEqual(t, len(ratings), 10)
		for _, r := range ratings {
			assert.NotEmpty(t, r.Symbol)
			assert.Greater(t, r.Elo, 0.0)
		}
	})

	t.Run("Token Stats", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/v1/ratings/BTC/stats")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestPredictionLifecycle(t *testing.T) {
	requireAPI(t)

	// An unknown round is "not ready", never an error.
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/rounds/%s/prediction", baseURL, "no-such-round"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestStrategyEndpoints(t *testing.T) {
	requireAPI(t)

	resp, err := http.Get(baseURL + "/api/v1/strategies/active")
	require.NoError(t, err)
	defer resp.Body.Close()

	// 200 with a strategy or 404 before the first promotion.
	assert.Contains(t, []int{http.StatusOK, http.StatusNotFound}, resp.StatusCode)
}
