package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Posts a desk reservation against a running reservation service. Handy for
// exercising the conflict check and the idempotent replay path from a shell.
func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8081"), "reservation service base url")
		orgID   = flag.String("org-id", getenv("ORG_ID", ""), "organization id")
		locID   = flag.String("location-id", getenv("LOCATION_ID", ""), "location id")
		spaceID = flag.String("space-id", getenv("SPACE_ID", ""), "space id")
		deskID  = flag.String("desk-id", getenv("DESK_ID", ""), "desk id")
		userID  = flag.String("user-id", getenv("USER_ID", ""), "booking user id")
		days    = flag.String("days", getenv("DAYS", ""), "comma-separated YYYY-MM-DD days")
		start   = flag.String("start", getenv("START_TIME", ""), "RFC3339 start, clock applied per day")
		end     = flag.String("end", getenv("END_TIME", ""), "RFC3339 end, clock applied per day")
		idemKey = flag.String("idempotency-key", "", "idempotency key (random when empty)")
		repeat  = flag.Int("repeat", 1, "send the same request N times")
	)
	flag.Parse()

	for _, req := range []struct{ name, val string }{
		{"ORG_ID", *orgID}, {"LOCATION_ID", *locID}, {"SPACE_ID", *spaceID},
		{"DESK_ID", *deskID}, {"USER_ID", *userID}, {"DAYS", *days},
		{"START_TIME", *start}, {"END_TIME", *end},
	} {
		if strings.TrimSpace(req.val) == "" {
			fatal(req.name + " is required")
		}
	}

	key := strings.TrimSpace(*idemKey)
	if key == "" {
		key = uuid.NewString()
	}

	payload, err := json.Marshal(map[string]any{
		"user_id":    *userID,
		"days":       strings.Split(*days, ","),
		"start_time": *start,
		"end_time":   *end,
	})
	if err != nil {
		fatal(err.Error())
	}

	url := fmt.Sprintf("%s/api/v1/organizations/%s/locations/%s/spaces/%s/desks/%s/reservations",
		strings.TrimRight(*baseURL, "/"), *orgID, *locID, *spaceID, *deskID)

	for i := 0; i < *repeat; i++ {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			fatal(err.Error())
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fatal(err.Error())
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		fmt.Printf("attempt=%d status=%d body=%s\n", i+1, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
