package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: 10 * time.Second}}
}

// do sends body as JSON and decodes the response into a generic map.
func (c *apiClient) do(method, path, token string, body any) (int, map[string]any, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, nil
}

func (s *session) printHealth() {
	fmt.Printf("  %s%sHealth%s\n", Bold, White, Reset)
	code, _, err := s.api.do(http.MethodGet, "/health", "", nil)
	if err != nil || code != http.StatusOK {
		fmt.Printf("  %s[-]%s %-12s %soffline%s\n", Red, Reset, "api", Red, Reset)
		return
	}
	fmt.Printf("  %s[+]%s %-12s %sok%s\n", Green, Reset, "api", Green, Reset)
}

func (s *session) printReady() {
	fmt.Printf("  %s%sReadiness%s\n", Bold, White, Reset)
	_, body, err := s.api.do(http.MethodGet, "/ready", "", nil)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	checks, _ := body["checks"].(map[string]any)
	for name, status := range checks {
		color, icon := Green, "[+]"
		if status != "ok" {
			color, icon = Red, "[-]"
		}
		fmt.Printf("  %s%s%s %-12s %s%v%s\n", color, icon, Reset, name, color, status, Reset)
	}
}

func (s *session) signup(args []string) {
	if len(args) < 4 {
		fmt.Printf("  %sUsage: signup <email> <password> <name> <surname> [phone]%s\n", Red, Reset)
		return
	}
	req := map[string]any{"email": args[0], "password": args[1], "name": args[2], "surname": args[3]}
	if len(args) > 4 {
		req["phone_number"] = args[4]
	}

	code, body, err := s.api.do(http.MethodPost, "/auth/signup", "", req)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	if code != http.StatusCreated {
		printFailure(code, body)
		return
	}
	fmt.Printf("  %s[ok]%s %v\n", Green, Reset, body["message"])
	if saved, _ := body["profile_saved"].(bool); !saved {
		fmt.Printf("  %s[!] %v%s\n", Yellow, body["warning"], Reset)
	}
}

func (s *session) login(args []string) {
	if len(args) < 2 {
		fmt.Printf("  %sUsage: login <email> <password>%s\n", Red, Reset)
		return
	}
	code, body, err := s.api.do(http.MethodPost, "/auth/login", "",
		map[string]string{"email": args[0], "password": args[1]})
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	if code != http.StatusOK {
		printFailure(code, body)
		return
	}
	s.token, _ = body["token"].(string)
	s.email = args[0]
	fmt.Printf("  %s[ok]%s %v\n", Green, Reset, body["message"])
}

func (s *session) me() {
	s.showProfile(http.MethodGet, "/users/me")
}

func (s *session) sync() {
	s.showProfile(http.MethodPost, "/users/sync")
}

func (s *session) showProfile(method, path string) {
	if s.token == "" {
		fmt.Printf("  %s[x] login first%s\n", Red, Reset)
		return
	}
	code, body, err := s.api.do(method, path, s.token, nil)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	if code != http.StatusOK {
		printFailure(code, body)
		return
	}
	user, ok := body["user"].(map[string]any)
	if !ok {
		user = body
	}
	for _, k := range []string{"id", "email", "name", "surname", "role", "phone_number", "is_active", "postgres_available", "warning"} {
		if v, ok := user[k]; ok && v != nil {
			fmt.Printf("  %s%-19s%s %v\n", Dim, k+":", Reset, v)
		}
	}
}

func printFailure(code int, body map[string]any) {
	msg := body["message"]
	if msg == nil {
		msg = body["reason"]
	}
	fmt.Printf("  %s[x] %d%s %v\n", Red, code, Reset, msg)
	if details, ok := body["details"].(map[string]any); ok {
		for field, why := range details {
			fmt.Printf("    %s%s: %v%s\n", Dim, field, why, Reset)
		}
	}
}
