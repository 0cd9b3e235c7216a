package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/franckalain/barcodenutrition/internal/barcode"
	"github.com/franckalain/barcodenutrition/internal/database"
	"github.com/franckalain/barcodenutrition/internal/fetch"
	"github.com/franckalain/barcodenutrition/internal/models"
	"github.com/franckalain/barcodenutrition/internal/nutrition"
	"github.com/franckalain/barcodenutrition/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const (
	codeBar  = "012345678905"
	codeSoda = "012345678912"
	authTok  = "12345"
)

// stubDecoder treats the image bytes as the barcode payload. Images starting
// with "blank" hold no barcode.
type stubDecoder struct{}

func (stubDecoder) Load(context.Context) error { return nil }
func (stubDecoder) Close() error               { return nil }

func (stubDecoder) Decode(_ context.Context, data []byte) (string, error) {
	if strings.HasPrefix(string(data), "blank") {
		return "", barcode.ErrNoBarcode
	}
	return string(data), nil
}

type fixture struct {
	server *Server
	media  *httptest.Server
}

// newFixture serves /media/<payload> images and answers lookups from a
// SQLite catalog holding two products.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.TrimPrefix(r.URL.Path, "/media/")))
	}))
	t.Cleanup(media.Close)

	db, err := database.NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SaveProduct(ctx, codeBar, product("Acme", "Bar", 250, 10, 30, 5)))
	require.NoError(t, db.SaveProduct(ctx, codeSoda, product("Fizz", "Soda", 140, 0, 39, 0)))

	logger := zaptest.NewLogger(t)
	httpFetcher := fetch.NewHTTPFetcher(fetch.HTTPConfig{Timeout: 5 * time.Second})
	resolver := pipeline.NewResolver(fetch.NewRouter(httpFetcher, false, 0), stubDecoder{}, pipeline.WithResolverLogger(logger))
	service := pipeline.NewService(resolver, nutrition.NewCatalogLookup(db),
		pipeline.WithFooter("Powered by Twilio."),
		pipeline.WithLogger(logger),
	)

	return &fixture{server: New(service, cfg, logger), media: media}
}

func product(brand, name string, cal, prot, carb, fat float64) *models.NutritionItem {
	return &models.NutritionItem{
		BrandName:         brand,
		ProductName:       name,
		Calories:          models.Float(cal),
		Protein:           models.Float(prot),
		TotalCarbohydrate: models.Float(carb),
		TotalFat:          models.Float(fat),
	}
}

func (f *fixture) form(body string, payloads ...string) url.Values {
	form := url.Values{}
	form.Set("Body", body)
	form.Set("NumMedia", strconv.Itoa(len(payloads)))
	for i, p := range payloads {
		form.Set("MediaUrl"+strconv.Itoa(i), f.media.URL+"/media/"+p)
	}
	return form
}

func post(t *testing.T, h http.Handler, path string, form url.Values, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func messageText(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var twiml struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &twiml), rec.Body.String())
	return twiml.Message
}

func TestInbound_Totals(t *testing.T) {
	f := newFixture(t, Config{})

	rec := post(t, f.server.Handler(), "/sms", f.form(" Total ", codeBar, codeSoda), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		"Here are the totals for the items you requested: 390 calories, 10g protein, 69g carbohydrates and 5g total fat.\n\nPowered by Twilio.",
		messageText(t, rec))
}

func TestInbound_SingleItem(t *testing.T) {
	f := newFixture(t, Config{})

	rec := post(t, f.server.Handler(), "/sms", f.form("", codeBar), "")
	assert.Equal(t,
		"Here are the totals for Acme Bar: 250 calories, 10g protein, 30g total carbohydrates, 5g total fat.\n\nPowered by Twilio.",
		messageText(t, rec))
}

func TestInbound_Replies(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		payloads []string
		want     string
	}{
		{
			name: "no media",
			body: "total",
			want: pipeline.NoMediaText,
		},
		{
			name:     "unrecognized barcode",
			body:     "compare",
			payloads: []string{codeBar, "blank"},
			want:     pipeline.DecodeFailureText,
		},
		{
			name:     "unknown product",
			body:     "total",
			payloads: []string{codeBar, "4006381333931"},
			want:     "Sorry but we couldn't find one or more of your items. Please try again without the following EANs which were not found in the Nutritionix database: 4006381333931 ",
		},
		{
			name:     "invalid keyword",
			body:     "xyz",
			payloads: []string{codeBar, codeSoda},
			want:     pipeline.InvalidKeywordText("xyz"),
		},
	}

	f := newFixture(t, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, f.server.Handler(), "/sms", f.form(tt.body, tt.payloads...), "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, messageText(t, rec))
		})
	}
}

func TestInbound_BadNumMedia(t *testing.T) {
	f := newFixture(t, Config{})

	form := url.Values{"NumMedia": {"many"}, "Body": {"total"}}
	rec := post(t, f.server.Handler(), "/sms", form, "")
	assert.Equal(t, pipeline.NoMediaText, messageText(t, rec))
}

func TestInbound_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, Config{})

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sms", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// sign computes a Twilio request signature: HMAC-SHA1 over the URL followed
// by every sorted form key and its value.
func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestInbound_Signature(t *testing.T) {
	cfg := Config{WebhookPath: "/hooks/sms", PublicURL: "https://example.com", AuthToken: authTok}
	f := newFixture(t, cfg)
	form := f.form("total", codeBar, codeSoda)

	t.Run("valid", func(t *testing.T) {
		rec := post(t, f.server.Handler(), "/hooks/sms", form, sign(authTok, "https://example.com/hooks/sms", form))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, messageText(t, rec), "Here are the totals for the items you requested")
	})

	t.Run("invalid", func(t *testing.T) {
		rec := post(t, f.server.Handler(), "/hooks/sms", form, sign("wrong", "https://example.com/hooks/sms", form))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := post(t, f.server.Handler(), "/hooks/sms", form, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Config{})

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func dialWS(t *testing.T, h http.Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wsReply struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg any) wsReply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply wsReply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestWebSocket_Scan(t *testing.T) {
	f := newFixture(t, Config{})
	conn := dialWS(t, f.server.Handler())

	reply := roundTrip(t, conn, map[string]any{
		"type": "scan",
		"data": map[string]any{
			"images": []string{
				base64.StdEncoding.EncodeToString([]byte(codeBar)),
				f.media.URL + "/media/" + codeSoda,
			},
			"keyword": "compare",
		},
	})
	require.Equal(t, "scan_result", reply.Type)
	assert.Equal(t, string(pipeline.OutcomeAnswered), reply.Data["outcome"])
	assert.Contains(t, reply.Data["reply"], "Lowest calories: Fizz Soda (barcode: 012345678912) with 140 calories.")
	assert.Contains(t, reply.Data["reply"], "Highest protein: Acme Bar (barcode: 012345678905) with 10g of protein.")
}

func TestWebSocket_Lookup(t *testing.T) {
	f := newFixture(t, Config{})
	conn := dialWS(t, f.server.Handler())

	reply := roundTrip(t, conn, map[string]any{"type": "lookup", "data": map[string]any{"code": codeBar}})
	require.Equal(t, "lookup_result", reply.Type)
	assert.Equal(t, codeBar, reply.Data["code"])
	item, ok := reply.Data["item"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme", item["brand_name"])
	assert.Equal(t, 250.0, item["calories"])

	reply = roundTrip(t, conn, map[string]any{"type": "lookup", "data": map[string]any{"code": "4006381333931"}})
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "No nutrition facts for 4006381333931", reply.Message)
}

func TestWebSocket_BadMessages(t *testing.T) {
	f := newFixture(t, Config{})
	conn := dialWS(t, f.server.Handler())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var reply wsReply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "Invalid message format", reply.Message)

	reply = roundTrip(t, conn, map[string]any{"type": "history"})
	assert.Equal(t, "Unknown message type", reply.Message)

	reply = roundTrip(t, conn, map[string]any{"type": "scan", "data": "oops"})
	assert.Equal(t, "Invalid scan data", reply.Message)
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.server.Start(ctx, "0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_ListenError(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.server.Start(context.Background(), "not-a-port")
	assert.Error(t, err)
}
