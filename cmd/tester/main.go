package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"main/internal/webhook"
)

// tester fires one signed webhook at a running swaphook instance, which
// is the quickest way to verify a deployment end to end in simulate
// mode.
func main() {
	url := flag.String("url", "http://localhost:8080/webhook", "Webhook endpoint")
	secret := flag.String("secret", "", "Webhook credential secret")
	key := flag.String("key", "", "Webhook credential key")
	action := flag.String("action", "buy", "buy or sell")
	symbol := flag.String("symbol", "BTC", "Base symbol")
	currency := flag.String("currency", "USD", "Quote currency")
	venueName := flag.String("venue", "spot", "spot, brokerage or chain")
	orderType := flag.String("type", "market", "market or limit")
	amount := flag.String("amount", "0.5", "Portfolio ratio to allocate")
	price := flag.String("price", "0", "Limit price, if any")
	mode := flag.String("mode", "simulate", "simulate or trade")
	flag.Parse()

	if *secret == "" || *key == "" {
		log.Fatal("both -secret and -key are required")
	}

	body := map[string]string{
		"action":   *action,
		"price":    *price,
		"symbol":   *symbol,
		"currency": *currency,
		"venue":    *venueName,
		"type":     *orderType,
		"amount":   *amount,
		"timenow":  time.Now().UTC().Format(time.RFC3339),
		"volume":   "0",
		"mode":     *mode,
		"token":    webhook.Token(webhook.Credentials{Secret: *secret, Key: *key}),
	}
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		log.Fatalf("marshal payload: %v", err)
	}

	resp, err := http.Post(*url, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()

	answer, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s %s\n", resp.Status, answer)
}
