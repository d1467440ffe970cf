package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"buildinghub_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSMSSender_PostsForm(t *testing.T) {
	var got map[string]string
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		require.NoError(t, r.ParseForm())
		apiKey = r.Header.Get("apikey")
		got = map[string]string{
			"senderid": r.PostForm.Get("senderid"),
			"msg":      r.PostForm.Get("msg"),
			"mobile":   r.PostForm.Get("mobile"),
			"output":   r.PostForm.Get("output"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"messageId":"m-42"}}`))
	}))
	defer srv.Close()

	cfg := &config.Config{SMSBaseURL: srv.URL + "/", SMSAPIKey: "secret", SMSSenderID: "Hub"}
	s := NewSMSSender(cfg, srv.Client(), zap.NewNop())

	resp, err := s.Send(context.Background(), "+306941234567", "hello")

	require.NoError(t, err)
	assert.Equal(t, "m-42", resp.MessageID)
	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, map[string]string{"senderid": "Hub", "msg": "hello", "mobile": "+306941234567", "output": "json"}, got)
	assert.Equal(t, SMS, s.Channel())
}

func TestWhatsAppSender_PostsJSON(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qr/rest/send_message", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":1234}`))
	}))
	defer srv.Close()

	cfg := &config.Config{WhatsAppBaseURL: srv.URL, WhatsAppToken: "tok", WhatsAppSender: "+3021000"}
	s := NewWhatsAppSender(cfg, srv.Client(), zap.NewNop())

	resp, err := s.Send(context.Background(), "+306941234567", "*hi*")

	require.NoError(t, err)
	assert.Equal(t, "1234", resp.MessageID)
	assert.Equal(t, "text", body["messageType"])
	assert.Equal(t, "tok", body["token"])
	assert.Equal(t, "+3021000", body["from"])
	assert.Equal(t, "+306941234567", body["to"])
	assert.Equal(t, "*hi*", body["text"])
}

func TestSender_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	s := NewWhatsAppSender(&config.Config{WhatsAppBaseURL: srv.URL}, srv.Client(), zap.NewNop())

	_, err := s.Send(context.Background(), "+30694", "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestNewSenders_OnlyConfigured(t *testing.T) {
	assert.Empty(t, NewSenders(&config.Config{}, zap.NewNop()))

	senders := NewSenders(&config.Config{SMSBaseURL: "http://sms", WhatsAppBaseURL: "http://wa"}, zap.NewNop())
	require.Len(t, senders, 2)
	assert.Equal(t, SMS, senders[0].Channel())
	assert.Equal(t, WhatsApp, senders[1].Channel())
}
