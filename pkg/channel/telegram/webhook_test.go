package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay/pkg/config"
)

func TestWebhookCommands(t *testing.T) {
	var methods []string
	var registeredURL string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		methods = append(methods, method)

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "setWebhook":
			var body struct {
				URL string `json:"url"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			registeredURL = body.URL
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		case "deleteWebhook":
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		case "getWebhookInfo":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"url":"https://example.com/webhook","has_custom_certificate":false,"pending_update_count":3}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
	defer server.Close()

	notifier, err := NewNotifier(config.TelegramConfig{Token: testToken, APIBase: server.URL}, server.Client(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, notifier.SetWebhook(ctx, " ", false))
	require.NoError(t, notifier.SetWebhook(ctx, "https://example.com/webhook", true))
	require.Equal(t, "https://example.com/webhook", registeredURL)

	info, err := notifier.WebhookInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/webhook", info.URL)
	require.Equal(t, 3, info.PendingUpdateCount)

	require.NoError(t, notifier.DeleteWebhook(ctx, false))
	require.Equal(t, []string{"setWebhook", "getWebhookInfo", "deleteWebhook"}, methods)
}
