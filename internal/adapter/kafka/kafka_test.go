package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 30, 0, 0, time.UTC)
	res := domain.AnalysisResult{
		ID:          "res-1",
		Kind:        domain.ResultRisk,
		Crop:        "arroz",
		Location:    domain.Location{Name: "valencia", Lat: 39.4699, Lon: -0.3763},
		GeneratedAt: now,
		Payload:     map[string]float64{"risk_score": 0.42},
	}

	msg, err := serializeToMessage(res)
	require.NoError(t, err)

	assert.Equal(t, []byte("res-1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "result_kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("risk"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "arroz", decoded["crop"])
	assert.Equal(t, "risk", decoded["kind"])
	assert.InDelta(t, 0.42, decoded["payload"].(map[string]any)["risk_score"], 1e-9)
}

func TestSerializeToMessage_UnencodablePayload(t *testing.T) {
	_, err := serializeToMessage(domain.AnalysisResult{ID: "bad", Kind: domain.ResultRisk, Payload: math.NaN()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serialize risk result bad")
}

func TestWriter_PublishEmptyIsNoop(t *testing.T) {
	w := NewWriter([]string{"localhost:1"}, "unused", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Publish(context.Background(), nil))
}
