package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	serverURL    string
	clientID     string
	clientSecret string
	scopes       string
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	serverURL = getEnv("SERVER_URL", "http://localhost:8080")
	clientID = getEnv("CLIENT_ID", "test-client")
	clientSecret = getEnv("CLIENT_SECRET", "")
	scopes = getEnv("SCOPES", "read")

	if clientSecret == "" {
		fmt.Println("Error: CLIENT_SECRET not set. Please set it in .env file or environment variable.")
		fmt.Println("The development client test-client uses the secret test-secret.")
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func main() {
	fmt.Printf("=== Client Credentials Demo ===\n")

	config := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     serverURL + "/oauth2/token",
		Scopes:       strings.Fields(scopes),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx := context.Background()

	// Step 1: Request a token
	fmt.Println("Step 1: Requesting access token...")
	token, err := config.Token(ctx)
	if err != nil {
		fmt.Printf("Error requesting token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("Access Token: %s...\n", token.AccessToken[:min(50, len(token.AccessToken))])
	fmt.Printf("Token Type: %s\n", token.Type())
	fmt.Printf("Scope: %v\n", token.Extra("scope"))
	fmt.Printf("Expires In: %s\n", time.Until(token.Expiry).Round(time.Second))
	fmt.Printf("========================================\n")

	// Step 2: Call a protected endpoint
	fmt.Println("\nStep 2: Calling /api/me...")
	if err := callMe(config.Client(ctx)); err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
}

func callMe(client *http.Client) error {
	resp, err := client.Get(serverURL + "/api/me")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return fmt.Errorf("%s: %s", errResp.Error, errResp.ErrorDescription)
	}

	fmt.Printf("Token claims: %s\n", string(body))
	return nil
}
