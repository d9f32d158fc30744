// Adpulse webhook receiver example.
//
// A minimal consumer of scheduled report deliveries. It verifies the
// signature when ADPULSE_WEBHOOK_SECRET is set and prints the report text.
//
// Usage:
//
//	export ADPULSE_WEBHOOK_SECRET="the WEBHOOK_SIGNING_SECRET of the server"
//	go run main.go
//
// Then create a schedule whose webhook_url is http://your-server:9000/webhook.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

const replayWindow = 5 * time.Minute

// reportDelivery is the subset of the delivery body this example reads.
type reportDelivery struct {
	Payload struct {
		Client    string `json:"cliente"`
		AccountID string `json:"account_id"`
		Period    struct {
			Start string `json:"inicio"`
			End   string `json:"fim"`
		} `json:"periodo"`
		Metrics struct {
			Reach      int64   `json:"reach"`
			TotalSpend float64 `json:"total_spend"`
		} `json:"metricas"`
	} `json:"payload"`
	WhatsAppText string `json:"whatsapp_text"`
}

func main() {
	secret := os.Getenv("ADPULSE_WEBHOOK_SECRET")
	if secret == "" {
		log.Println("ADPULSE_WEBHOOK_SECRET not set; signatures are not checked")
	}

	http.HandleFunc("/webhook", webhookHandler(secret))
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	log.Println("listening on :9000")
	log.Fatal(http.ListenAndServe(":9000", nil))
}

func webhookHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if secret != "" {
			ts := r.Header.Get("X-Adpulse-Timestamp")
			sig := r.Header.Get("X-Adpulse-Signature")
			if !verify(secret, ts, sig, body, time.Now()) {
				log.Printf("rejected delivery %s: bad signature", r.Header.Get("X-Adpulse-Delivery-Id"))
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}
		}

		var d reportDelivery
		if err := json.Unmarshal(body, &d); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		log.Printf("report for %s (%s) %s..%s reach=%d spend=%.2f",
			d.Payload.Client, d.Payload.AccountID,
			d.Payload.Period.Start, d.Payload.Period.End,
			d.Payload.Metrics.Reach, d.Payload.Metrics.TotalSpend)
		log.Printf("\n%s", d.WhatsAppText)

		w.WriteHeader(http.StatusNoContent)
	}
}

// verify checks "v1=" + hex(HMAC-SHA256(secret, timestamp + "." + body))
// and rejects timestamps outside the replay window.
func verify(secret, timestamp, signature string, body []byte, now time.Time) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if d := now.Sub(time.Unix(ts, 0)); d > replayWindow || d < -replayWindow {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	expected := "v1=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
