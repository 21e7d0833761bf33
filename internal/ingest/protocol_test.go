package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, inner map[string]interface{}) []byte {
	t.Helper()
	innerRaw, err := json.Marshal(inner)
	require.NoError(t, err)
	outer, err := json.Marshal(map[string]interface{}{
		"type": "gameData",
		"data": string(innerRaw),
	})
	require.NoError(t, err)
	return append([]byte("NF#"), outer...)
}

func TestParseFrame(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("settled round frame", func(t *testing.T) {
		raw := frame(t, map[string]interface{}{
			"type":   "round",
			"status": "settled",
			"rdId":   "r-1001",
			"token": map[string]interface{}{
				"btc": map[string]interface{}{"s": 1, "p": 1.85},
				"eth": map[string]interface{}{"s": 2, "p": 1.42},
			},
			"time": map[string]interface{}{
				"now": map[string]interface{}{"settle": int64(1767268800000)},
			},
		})

		msg, ok, err := ParseFrame(raw, now)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "r-1001", msg.RoundID)
		assert.Equal(t, StatusSettled, msg.Status)
		require.Len(t, msg.Tokens, 2)
		assert.ElementsMatch(t, []string{"BTC", "ETH"}, msg.Symbols())
		assert.Equal(t, time.UnixMilli(1767268800000).UTC(), msg.SettleAt)
	})

	t.Run("settle time falls back to now", func(t *testing.T) {
		raw := frame(t, map[string]interface{}{
			"type":   "round",
			"status": "settling",
			"rdId":   "r-1002",
			"token": map[string]interface{}{
				"BTC": map[string]interface{}{"s": 0, "p": 0},
			},
		})
		msg, ok, err := ParseFrame(raw, now)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, now, msg.SettleAt)
	})

	t.Run("non feed frame ignored", func(t *testing.T) {
		_, ok, err := ParseFrame([]byte(`{"type":"ping"}`), now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong envelope type ignored", func(t *testing.T) {
		outer, _ := json.Marshal(map[string]interface{}{"type": "chat", "data": "{}"})
		_, ok, err := ParseFrame(append([]byte("NF#"), outer...), now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("irrelevant status ignored", func(t *testing.T) {
		raw := frame(t, map[string]interface{}{
			"type":   "round",
			"status": "betting",
			"rdId":   "r-1003",
		})
		_, ok, err := ParseFrame(raw, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt payload errors", func(t *testing.T) {
		outer, _ := json.Marshal(map[string]interface{}{"type": "gameData", "data": "{broken"})
		_, _, err := ParseFrame(append([]byte("NF#"), outer...), now)
		assert.Error(t, err)
	})

	t.Run("missing round id errors", func(t *testing.T) {
		raw := frame(t, map[string]interface{}{
			"type":   "round",
			"status": "settled",
		})
		_, _, err := ParseFrame(raw, now)
		assert.Error(t, err)
	})
}
