package cultural

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrProviderUnavailable marks upstream calendar-provider failures. The
// engine surfaces these unchanged; it never substitutes fabricated
// cultural data.
var ErrProviderUnavailable = errors.New("cultural calendar provider unavailable")

// Festival is a calendar window supplied by the provider.
type Festival struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Major bool      `json:"major"`
}

// PrayerTime is one named prayer instant for a date and location.
type PrayerTime struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// CalendarService answers forward-looking cultural calendar queries.
type CalendarService interface {
	IsRamadan(ctx context.Context, date time.Time) (bool, error)
	IsFastingPeriod(ctx context.Context, date time.Time) (bool, error)
	UpcomingFestivals(ctx context.Context, date time.Time, daysAhead int) ([]Festival, error)
	PrayerTimes(ctx context.Context, date time.Time, location models.Location) ([]PrayerTime, error)
}

// CalendarClient calls the external calendar provider over HTTP, with an
// OAuth2 client-credentials token source when one is configured.
type CalendarClient struct {
	baseURL string
	client  *http.Client
}

type CalendarClientOptions struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

func NewCalendarClient(opts CalendarClientOptions) *CalendarClient {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{Timeout: opts.Timeout, Transport: transport}
	if opts.TokenURL != "" && opts.ClientID != "" {
		creds := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		client = creds.Client(context.Background())
		client.Timeout = opts.Timeout
	}

	return &CalendarClient{baseURL: opts.BaseURL, client: client}
}

func (c *CalendarClient) IsRamadan(ctx context.Context, date time.Time) (bool, error) {
	var out struct {
		Ramadan bool `json:"ramadan"`
	}
	params := url.Values{"date": {date.Format("2006-01-02")}}
	if err := c.get(ctx, "/api/v1/calendar/ramadan", params, &out); err != nil {
		return false, err
	}
	return out.Ramadan, nil
}

func (c *CalendarClient) IsFastingPeriod(ctx context.Context, date time.Time) (bool, error) {
	var out struct {
		Fasting bool `json:"fasting"`
	}
	params := url.Values{"date": {date.Format("2006-01-02")}}
	if err := c.get(ctx, "/api/v1/calendar/fasting", params, &out); err != nil {
		return false, err
	}
	return out.Fasting, nil
}

func (c *CalendarClient) UpcomingFestivals(ctx context.Context, date time.Time, daysAhead int) ([]Festival, error) {
	var out struct {
		Festivals []Festival `json:"festivals"`
	}
	params := url.Values{
		"date": {date.Format("2006-01-02")},
		"days": {fmt.Sprintf("%d", daysAhead)},
	}
	if err := c.get(ctx, "/api/v1/calendar/festivals", params, &out); err != nil {
		return nil, err
	}
	return out.Festivals, nil
}

func (c *CalendarClient) PrayerTimes(ctx context.Context, date time.Time, location models.Location) ([]PrayerTime, error) {
	var out struct {
		Times []PrayerTime `json:"times"`
	}
	params := url.Values{
		"date": {date.Format("2006-01-02")},
		"lat":  {fmt.Sprintf("%f", location.Latitude)},
		"lon":  {fmt.Sprintf("%f", location.Longitude)},
	}
	if err := c.get(ctx, "/api/v1/calendar/prayer-times", params, &out); err != nil {
		return nil, err
	}
	return out.Times, nil
}

func (c *CalendarClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build calendar request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request failed: %w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("calendar returned status %d: %w", resp.StatusCode, ErrProviderUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode calendar response: %w", err)
	}
	return nil
}
