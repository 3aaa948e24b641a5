package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// Discord's hard message cap is 2000 characters; stay a little under it the
// way the original watcher did.
const discordMessageLimit = 1990

type Discord struct {
	webhookURL string
	http       *retryablehttp.Client
}

func NewDiscord(webhookURL string) (*Discord, error) {
	if webhookURL == "" {
		return nil, errors.New("notify: discord webhook url is empty")
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	return &Discord{webhookURL: webhookURL, http: rc}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"content": Truncate(text, discordMessageLimit),
	})
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
