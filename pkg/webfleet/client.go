// Package webfleet is a thin client for the Webfleet CSV extern API -
// the telemetry collaborator that supplies position reports and carries
// the physical output (buzzer) trigger.
package webfleet

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/fleetguard/fleetguard/pkg/util"
	"github.com/rs/zerolog/log"
)

const defaultAPIURL = "https://csv.webfleet.com/extern"

const maxRequestRetries = 3

type Client struct {
	Account  string
	Username string
	Password string

	APIURL string

	HTTPClient *http.Client
}

func NewClient(account string, username string, password string) *Client {
	return &Client{
		Account:  account,
		Username: username,
		Password: password,

		APIURL: defaultAPIURL,

		HTTPClient: &http.Client{},
	}
}

func NewClientFromEnvironment() (*Client, error) {
	env := util.GetEnvironmentVariables()

	if env["FLEETGUARD_WEBFLEET_ACCOUNT"] == "" || env["FLEETGUARD_WEBFLEET_USERNAME"] == "" || env["FLEETGUARD_WEBFLEET_PASSWORD"] == "" {
		return nil, fmt.Errorf("webfleet credentials not set in environment")
	}

	client := NewClient(
		env["FLEETGUARD_WEBFLEET_ACCOUNT"],
		env["FLEETGUARD_WEBFLEET_USERNAME"],
		env["FLEETGUARD_WEBFLEET_PASSWORD"],
	)

	if env["FLEETGUARD_WEBFLEET_URL"] != "" {
		client.APIURL = env["FLEETGUARD_WEBFLEET_URL"]
	}

	return client, nil
}

// signature is MD5 over the alphabetically sorted key/value pairs with
// the API password appended, hex encoded.
func (c *Client) signature(params url.Values) string {
	var keys []string
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, key := range keys {
		builder.WriteString(key)
		builder.WriteString(params.Get(key))
	}
	builder.WriteString(c.Password)

	return fmt.Sprintf("%x", md5.Sum([]byte(builder.String())))
}

func (c *Client) request(ctx context.Context, action string, extraParams map[string]string) ([]byte, error) {
	params := url.Values{}
	params.Set("account", c.Account)
	params.Set("username", c.Username)
	params.Set("action", action)
	params.Set("lang", "en")
	params.Set("outputformat", "csv")

	for key, value := range extraParams {
		params.Set(key, value)
	}

	params.Set("signature", c.signature(params))

	requestURL := fmt.Sprintf("%s?%s", c.APIURL, params.Encode())

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("webfleet %s returned status %d", action, resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	retryBackoff := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRequestRetries), ctx)
	if err := backoff.Retry(operation, retryBackoff); err != nil {
		return nil, err
	}

	return body, nil
}

// SwitchOutput activates (or deactivates) a named external output on a
// vehicle, e.g. the in-cab buzzer, for the given number of seconds.
func (c *Client) SwitchOutput(ctx context.Context, objectNo string, outputName string, activate bool, durationSeconds int) error {
	state := "0"
	if activate {
		state = "1"
	}

	log.Info().
		Str("vehicle", objectNo).
		Str("output", outputName).
		Int("duration", durationSeconds).
		Msg("Triggering external output")

	_, err := c.request(ctx, "switchOutputExtern", map[string]string{
		"objectno":   objectNo,
		"outputname": outputName,
		"state":      state,
		"duration":   fmt.Sprint(durationSeconds),
	})

	return err
}
