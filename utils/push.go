package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const expoPushURL = "https://exp.host/--/api/v2/push/send"

var pushClient = &http.Client{Timeout: 10 * time.Second}

type expoPushMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound"`
	Priority string            `json:"priority"`
}

// SendNotification delivers one push message to an Expo push token. Delivery
// is best-effort; callers treat a returned error as a logging concern, not a
// request failure.
func SendNotification(token, title, body string, data map[string]string) error {
	if !strings.HasPrefix(token, "ExponentPushToken") && !strings.HasPrefix(token, "ExpoPushToken") {
		return fmt.Errorf("not an expo push token: %s", token)
	}

	msg := expoPushMessage{
		To:       token,
		Title:    title,
		Body:     body,
		Data:     data,
		Sound:    "default",
		Priority: "high",
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, expoPushURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := pushClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("expo push returned %d: %s", res.StatusCode, raw)
	}

	// Expo reports per-message errors in the body even on 200.
	var pushRes struct {
		Data struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&pushRes); err == nil {
		if pushRes.Data.Status == "error" {
			return fmt.Errorf("expo push rejected message: %s", pushRes.Data.Message)
		}
	}

	return nil
}
