package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	var (
		base     = flag.String("base", "http://localhost:8080", "API base URL")
		email    = flag.String("email", "operator@acme.local", "login email")
		password = flag.String("password", "password", "login password")
	)
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	body, _ := json.Marshal(map[string]string{"email": *email, "password": *password})
	resp, err := client.Post(*base+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	var login struct {
		Token string `json:"token"`
		User  struct {
			Role    string `json:"role"`
			BrandID string `json:"brand_id"`
		} `json:"user"`
	}
	if err := decode(resp, &login); err != nil {
		log.Fatalf("login: %v", err)
	}
	if login.Token == "" {
		log.Fatal("login: empty token")
	}

	req, _ := http.NewRequest(http.MethodGet, *base+"/api/comments?limit=5", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = client.Do(req)
	if err != nil {
		log.Fatalf("list comments: %v", err)
	}
	var list struct {
		Comments []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Text     string `json:"text"`
		} `json:"comments"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := decode(resp, &list); err != nil {
		log.Fatalf("list comments: %v", err)
	}

	fmt.Printf("✅ api smoke test passed: role=%s total_comments=%d\n", login.User.Role, list.Pagination.Total)
	for _, c := range list.Comments {
		fmt.Printf("  %s  @%s: %s\n", c.ID, c.Username, c.Text)
	}
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
