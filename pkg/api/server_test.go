package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/metadatastore"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/mlmodel"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/mlmodel/training"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/preprocess"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestPredictor fits a small forest where heavy tcp traffic is DDoS and
// light udp traffic is Normal
func newTestPredictor(t *testing.T) *mlmodel.Predictor {
	t.Helper()
	transformer := &preprocess.Transformer{
		LabelColumn:    "threat_type",
		FeatureColumns: []string{"protocol", "total_bytes"},
		Encoders:       map[string]*preprocess.LabelEncoder{"protocol": preprocess.FitLabelEncoder([]string{"tcp", "udp"})},
		Scaler:         &preprocess.StandardScaler{Mean: []float64{0, 500}, Scale: []float64{1, 250}},
	}

	var X [][]float64
	var y []string
	for i := 0; i < 20; i++ {
		record := map[string]interface{}{"protocol": "tcp", "total_bytes": float64(1000 + i*10)}
		label := "DDoS"
		if i%2 == 1 {
			record = map[string]interface{}{"protocol": "udp", "total_bytes": float64(100 + i*10)}
			label = "Normal"
		}
		x, err := transformer.TransformRecord(record)
		require.NoError(t, err)
		X = append(X, x)
		y = append(y, label)
	}

	model := training.NewRandomForestClassifier(1)
	model.NEstimators = 10
	require.NoError(t, model.Fit(X, y))

	predictor, err := mlmodel.NewPredictor(&mlmodel.ModelBundle{
		Model:          model,
		Algorithm:      models.ModelTypeRandomForest,
		FeatureColumns: transformer.FeatureColumns,
		Classes:        model.Classes(),
		RunID:          "run-1",
	}, transformer)
	require.NoError(t, err)
	return predictor
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	s, err := NewServer(newTestPredictor(t), opts, zap.NewNop())
	require.NoError(t, err)
	return s
}

func newTestQueue(t *testing.T) (*queue.JobQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	jobs, err := queue.NewJobQueue(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { jobs.Close() })
	return jobs, mr
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNewServerRequiresPredictor(t *testing.T) {
	_, err := NewServer(nil, Options{}, nil)
	assert.Error(t, err)
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AI Threat Detection API is running", decode(t, w)["message"])

	w = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPredict(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLabel  string
	}{
		{"tcp record", `{"protocol": "tcp", "total_bytes": 1100}`, http.StatusOK, "DDoS"},
		{"udp record with extra field", `{"protocol": "udp", "total_bytes": 150, "src_ip": "10.0.0.1"}`, http.StatusOK, "Normal"},
		{"malformed json", `{"protocol": `, http.StatusBadRequest, ""},
		{"array body", `[1, 2]`, http.StatusBadRequest, ""},
		{"missing field", `{"protocol": "tcp"}`, http.StatusInternalServerError, ""},
		{"unseen category", `{"protocol": "icmp", "total_bytes": 10}`, http.StatusInternalServerError, ""},
		{"non numeric", `{"protocol": "tcp", "total_bytes": "many"}`, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/predict", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantLabel, body["Threat_Type"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}

	w := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `sentinel_predictions_total{model="random_forest",threat_type="DDoS"} 1`)
	assert.Contains(t, w.Body.String(), `sentinel_prediction_failures_total{reason="bad_request"} 2`)
	assert.Contains(t, w.Body.String(), "sentinel_prediction_duration_seconds_count 2")
}

func TestPredictPublishes(t *testing.T) {
	jobs, mr := newTestQueue(t)
	publisher := queue.NewPublisher(jobs.Client())
	s := newTestServer(t, Options{Jobs: jobs, Publisher: publisher})

	w := do(t, s, http.MethodPost, "/predict", `{"protocol": "tcp", "total_bytes": 1120}`)
	require.Equal(t, http.StatusOK, w.Code)

	recent, err := publisher.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "DDoS", recent[0].ThreatType)
	assert.Equal(t, models.ModelTypeRandomForest, recent[0].Model)
	assert.Greater(t, recent[0].Confidence, 0.0)

	t.Run("redis outage does not fail predictions", func(t *testing.T) {
		mr.Close()
		w := do(t, s, http.MethodPost, "/predict", `{"protocol": "udp", "total_bytes": 120}`)
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(t, s, http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestWebSocketStream(t *testing.T) {
	s := newTestServer(t, Options{})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	w := do(t, s, http.MethodPost, "/predict", `{"protocol": "udp", "total_bytes": 200}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.PredictionEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "Normal", event.ThreatType)
	assert.NotEmpty(t, event.ID)
	assert.GreaterOrEqual(t, event.Confidence, 0.5, "winning class probability")
	assert.LessOrEqual(t, event.Confidence, 1.0)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	var counts []int
	hub := NewHub(zap.NewNop(), func(n int) { counts = append(counts, n) })

	// no writer drains this queue, like a client that stopped reading
	stalled := &client{send: make(chan interface{}, 1)}
	hub.add(stalled)

	done := make(chan struct{})
	go func() {
		hub.Broadcast("first")
		hub.Broadcast("second")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a stalled client")
	}

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, []int{1, 0}, counts)

	queued, ok := <-stalled.send
	assert.True(t, ok)
	assert.Equal(t, "first", queued)
	_, ok = <-stalled.send
	assert.False(t, ok, "queue is closed once the client is dropped")

	hub.Broadcast("third")
	hub.Close()
}

func TestModelsEndpoints(t *testing.T) {
	w := do(t, newTestServer(t, Options{}), http.MethodGet, "/api/models", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	registry, err := metadatastore.NewSQLiteStore(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	defer registry.Close()

	run := &models.TrainingRun{
		ID:        "run-1",
		Status:    models.RunStatusCompleted,
		Trigger:   models.RunTriggerCLI,
		BestModel: models.ModelTypeRandomForest,
		StartedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, registry.SaveRun(run))
	s := newTestServer(t, Options{Registry: registry})

	w = do(t, s, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["runs"], 1)
	assert.Equal(t, "run-1", body["serving"].(map[string]interface{})["run_id"])

	w = do(t, s, http.MethodGet, "/api/models/run-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "random_forest", decode(t, w)["best_model"])

	w = do(t, s, http.MethodGet, "/api/models/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrainEndpoints(t *testing.T) {
	w := do(t, newTestServer(t, Options{}), http.MethodPost, "/api/train", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	jobs, _ := newTestQueue(t)
	s := newTestServer(t, Options{Jobs: jobs})
	ctx := context.Background()

	w = do(t, s, http.MethodPost, "/api/train", `{"reason": "new capture"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	jobID := body["id"].(string)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "new capture", body["reason"])

	w = do(t, s, http.MethodPost, "/api/train", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	length, err := jobs.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)

	w = do(t, s, http.MethodPost, "/api/train", `{"reason": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/train/"+jobID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, jobs.SetResult(ctx, &models.TrainJobResult{
		JobID:       jobID,
		Status:      models.JobStatusCompleted,
		RunID:       "run-9",
		CompletedAt: time.Now().UTC(),
	}))
	w = do(t, s, http.MethodGet, "/api/train/"+jobID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "run-9", decode(t, w)["run_id"])
}

func TestShutdownWithoutStart(t *testing.T) {
	s := newTestServer(t, Options{})
	assert.NoError(t, s.Shutdown(context.Background()))
}
