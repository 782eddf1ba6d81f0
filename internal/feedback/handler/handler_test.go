package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"feedback-server/internal/clients/openai"
	twilioclient "feedback-server/internal/clients/twilio"
	"feedback-server/internal/feedback/bridge"
	"feedback-server/internal/feedback/processor"
	"feedback-server/internal/observability"
	"feedback-server/internal/session"
	"feedback-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCaller struct {
	mu    sync.Mutex
	calls []twilioclient.PlaceCallParams
	sid   string
}

func (f *fakeCaller) PlaceCall(ctx context.Context, params twilioclient.PlaceCallParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	return f.sid, nil
}

func (f *fakeCaller) placedCalls() []twilioclient.PlaceCallParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]twilioclient.PlaceCallParams, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeDialer struct{}

func (fakeDialer) Connect(ctx context.Context, cfg openai.ConversationConfig) (*openai.Conversation, error) {
	return nil, errors.New("realtime endpoint unavailable")
}

type fakeBridge struct{}

func (fakeBridge) Run(ctx context.Context, taskID string, telephony bridge.TelephonyStream, realtime bridge.RealtimeConversation) session.Session {
	return session.Session{}
}

type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]store.FeedbackSession
	failed  []store.FailFeedbackSessionParams
	created []store.CreateFeedbackSessionParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]store.FeedbackSession)}
}

func (f *fakeStore) CreateFeedbackSession(ctx context.Context, params store.CreateFeedbackSessionParams) (store.FeedbackSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, params)
	row := store.FeedbackSession{
		TaskID:      params.TaskID,
		BookingID:   params.BookingID,
		PhoneNumber: params.PhoneNumber,
		Status:      string(session.StatusPending),
		CreatedAt:   time.Now().UTC(),
	}
	f.rows[params.TaskID] = row
	return row, nil
}

func (f *fakeStore) GetFeedbackSessionByTaskID(ctx context.Context, taskID string) (store.FeedbackSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[taskID]
	if !ok {
		return store.FeedbackSession{}, store.ErrNotFound
	}
	return row, nil
}

func (f *fakeStore) SetFeedbackSessionCallSID(ctx context.Context, taskID, callSID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[taskID]
	if !ok {
		return store.ErrNotFound
	}
	row.CallSID = sql.NullString{String: callSID, Valid: true}
	f.rows[taskID] = row
	return nil
}

func (f *fakeStore) FailFeedbackSession(ctx context.Context, params store.FailFeedbackSessionParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, params)
	if row, ok := f.rows[params.TaskID]; ok {
		row.Status = string(session.StatusFailed)
		row.FailureReason = sql.NullString{String: params.FailureReason, Valid: true}
		f.rows[params.TaskID] = row
	}
	return nil
}

func (f *fakeStore) failedSessions() []store.FailFeedbackSessionParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.FailFeedbackSessionParams, len(f.failed))
	copy(out, f.failed)
	return out
}

type handlerFixture struct {
	handler  Handler
	registry *session.Registry
	store    *fakeStore
	caller   *fakeCaller
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	logger := observability.NewLogger()
	registry := session.NewRegistry()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		registry.Shutdown(ctx)
	})

	st := newFakeStore()
	caller := &fakeCaller{sid: "CA-handler-test"}
	proc := processor.New(registry, caller, fakeDialer{}, fakeBridge{}, st,
		"1. Overall stay experience",
		processor.Config{BaseURL: "https://feedback.example.com", AnswerTimeout: time.Minute, Voice: "marin"},
		logger)

	return &handlerFixture{
		handler:  New(proc, logger),
		registry: registry,
		store:    st,
		caller:   caller,
	}
}

func seedSession(t *testing.T, registry *session.Registry, taskID string) {
	t.Helper()
	require.NoError(t, registry.Create(session.Session{
		TaskID:      taskID,
		BookingID:   "BK-2024-001",
		PhoneNumber: "+91-7905324606",
		Status:      session.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}))
}

func testContext(t *testing.T, req *http.Request, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	return c, w
}

func TestHandler_HandleHealthCheck(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	c, w := testContext(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)

	f.handler.HandleHealthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "hostel-feedback-system", body["service"])
}

func TestHandler_HandleInitiateFeedback(t *testing.T) {
	t.Parallel()

	t.Run("missing booking_id", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		c, w := testContext(t, httptest.NewRequest(http.MethodPost, "/get_feedback", nil), nil)

		f.handler.HandleInitiateFeedback(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown booking", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		c, w := testContext(t, httptest.NewRequest(http.MethodPost, "/get_feedback?booking_id=BK-1999-999", nil), nil)

		f.handler.HandleInitiateFeedback(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, f.caller.placedCalls())
	})

	t.Run("initiates a call", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		c, w := testContext(t, httptest.NewRequest(http.MethodPost, "/get_feedback?booking_id=BK-2024-001", nil), nil)

		f.handler.HandleInitiateFeedback(c)

		require.Equal(t, http.StatusOK, w.Code)
		var initiated processor.InitiatedFeedback
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &initiated))
		assert.True(t, strings.HasPrefix(initiated.TaskID, "task_"))
		assert.Equal(t, "initiated", initiated.Status)
		assert.Equal(t, "Feedback call initiated for booking BK-2024-001", initiated.Message)

		deadline := time.Now().Add(2 * time.Second)
		for {
			sess, err := f.registry.Get(initiated.TaskID)
			require.NoError(t, err)
			if sess.CallSID != "" {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("call was never placed")
			}
			time.Sleep(5 * time.Millisecond)
		}

		calls := f.caller.placedCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "+91-7905324606", calls[0].To)
		assert.Equal(t, "https://feedback.example.com/twilio/voice/"+initiated.TaskID, calls[0].VoiceURL)
	})
}

func TestHandler_HandleGetFeedbackStatus(t *testing.T) {
	t.Parallel()

	t.Run("completed session", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		const taskID = "task_handler0001"
		seedSession(t, f.registry, taskID)
		startedAt := time.Now().UTC()
		_, err := f.registry.MarkInProgress(taskID, startedAt)
		require.NoError(t, err)
		require.NoError(t, f.registry.AppendTranscript(taskID, session.TranscriptEntry{
			Role: session.RoleAgent, Content: "How was your stay?", Sequence: 1,
		}))
		_, err = f.registry.Complete(taskID, session.Summary{
			Overview:        "Positive stay with minor issues.",
			Painpoints:      []string{"WiFi dropped in room 204"},
			Highlights:      []string{"Friendly staff"},
			Recommendations: []string{"Upgrade the router"},
			Sentiment:       session.SentimentPositive,
		}, startedAt.Add(90*time.Second), 90)
		require.NoError(t, err)

		c, w := testContext(t, httptest.NewRequest(http.MethodGet, "/get_feedback/"+taskID, nil),
			gin.Params{{Key: "task_id", Value: taskID}})

		f.handler.HandleGetFeedbackStatus(c)

		require.Equal(t, http.StatusOK, w.Code)
		var resp FeedbackStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, taskID, resp.TaskID)
		assert.Equal(t, "BK-2024-001", resp.BookingID)
		assert.Equal(t, "completed", resp.Status)
		assert.Equal(t, 90, resp.DurationSeconds)
		require.NotNil(t, resp.Summary)
		assert.Equal(t, "Positive stay with minor issues.", resp.Summary.Overview)
		require.Len(t, resp.Transcript, 1)
		assert.Equal(t, "How was your stay?", resp.Transcript[0].Content)
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		c, w := testContext(t, httptest.NewRequest(http.MethodGet, "/get_feedback/task_missing", nil),
			gin.Params{{Key: "task_id", Value: "task_missing"}})

		f.handler.HandleGetFeedbackStatus(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_HandleVoiceWebhook(t *testing.T) {
	t.Parallel()

	t.Run("known task returns stream TwiML", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		const taskID = "task_voicehd0001"
		seedSession(t, f.registry, taskID)

		c, w := testContext(t, httptest.NewRequest(http.MethodPost, "/twilio/voice/"+taskID, nil),
			gin.Params{{Key: "task_id", Value: taskID}})

		f.handler.HandleVoiceWebhook(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
		body := w.Body.String()
		assert.Contains(t, body, "<Connect>")
		assert.Contains(t, body, "wss://feedback.example.com/twilio/stream/"+taskID)
	})

	t.Run("unknown task hangs up", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		c, w := testContext(t, httptest.NewRequest(http.MethodPost, "/twilio/voice/task_missing", nil),
			gin.Params{{Key: "task_id", Value: "task_missing"}})

		f.handler.HandleVoiceWebhook(c)

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "sorry, there was an error. Please try again later.")
		assert.Contains(t, body, "<Hangup")
		assert.NotContains(t, body, "<Connect>")
	})
}

func TestHandler_HandleStatusCallback(t *testing.T) {
	t.Parallel()

	statusRequest := func(taskID, callStatus string) *http.Request {
		form := url.Values{}
		form.Set("CallStatus", callStatus)
		req := httptest.NewRequest(http.MethodPost, "/twilio/status/"+taskID, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	t.Run("busy fails the pending session", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		const taskID = "task_statushd01"
		seedSession(t, f.registry, taskID)

		c, w := testContext(t, statusRequest(taskID, "busy"), gin.Params{{Key: "task_id", Value: taskID}})

		f.handler.HandleStatusCallback(c)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])

		sess, err := f.registry.Get(taskID)
		require.NoError(t, err)
		assert.Equal(t, session.StatusFailed, sess.Status)
		assert.Equal(t, session.ReasonBusy, sess.FailureReason)

		failed := f.store.failedSessions()
		require.Len(t, failed, 1)
		assert.Equal(t, session.ReasonBusy, failed[0].FailureReason)
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		c, w := testContext(t, statusRequest("task_missing", "completed"),
			gin.Params{{Key: "task_id", Value: "task_missing"}})

		f.handler.HandleStatusCallback(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_HandleMediaStream(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	r := gin.New()
	r.GET("/twilio/stream/:task_id", f.handler.HandleMediaStream)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/twilio/stream/task_missing"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestVerifyTwilioSignature(t *testing.T) {
	t.Parallel()

	const authToken = "twilio-auth-token-0001"
	const baseURL = "https://feedback.example.com"

	logger := observability.NewLogger()
	r := gin.New()
	r.POST("/twilio/status/:task_id", VerifyTwilioSignature(authToken, baseURL, logger), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sign := func(requestURL string, params map[string]string) string {
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		payload := requestURL
		for _, key := range keys {
			payload += key + params[key]
		}
		mac := hmac.New(sha1.New, []byte(authToken))
		mac.Write([]byte(payload))
		return base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}

	signedRequest := func(signature string) *http.Request {
		form := url.Values{}
		form.Set("CallStatus", "ringing")
		req := httptest.NewRequest(http.MethodPost, "/twilio/status/task_sig00000001", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if signature != "" {
			req.Header.Set("X-Twilio-Signature", signature)
		}
		return req
	}

	t.Run("valid signature passes", func(t *testing.T) {
		t.Parallel()

		signature := sign(baseURL+"/twilio/status/task_sig00000001", map[string]string{"CallStatus": "ringing"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, signedRequest(signature))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid signature is rejected", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		r.ServeHTTP(w, signedRequest("bm90LWEtcmVhbC1zaWduYXR1cmU="))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		r.ServeHTTP(w, signedRequest(""))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
