package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/askarbek/ride-driver-agent/internal/domain/models"
	"github.com/askarbek/ride-driver-agent/internal/domain/types"
	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/askarbek/ride-driver-agent/pkg/metrics"
)

const serviceName = "driver-agent"

// Client is a stateless request/response wrapper around the remote booking
// API. Every method takes already-validated identifiers and returns either a
// success payload or a typed failure. No retries are embedded here.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func New(baseURL, bearerToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   bearerToken,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

// DriverByPhone fetches the driver profile for the given phone number.
func (c *Client) DriverByPhone(ctx context.Context, phone string) (*models.Driver, error) {
	const op = "booking.DriverByPhone"

	var driver models.Driver
	path := fmt.Sprintf("/drivers/phone/%s", url.PathEscape(phone))
	if err := c.do(ctx, op, http.MethodGet, path, nil, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// UpdateToken registers or refreshes the driver's push token with the backend.
func (c *Client) UpdateToken(ctx context.Context, driverID, pushToken string) error {
	const op = "booking.UpdateToken"

	body := map[string]string{"token": pushToken}
	path := fmt.Sprintf("/drivers/%s", url.PathEscape(driverID))
	return c.do(ctx, op, http.MethodPut, path, body, nil)
}

// Accept asks the backend to assign the booking to this driver.
func (c *Client) Accept(ctx context.Context, driverID, bookingID string) (*models.BookingRecord, error) {
	const op = "booking.Accept"

	body := map[string]string{
		"driverId":  driverID,
		"bookingId": bookingID,
	}

	var record models.BookingRecord
	if err := c.do(ctx, op, http.MethodPut, "/drivers/accept", body, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Complete marks the booking as done.
func (c *Client) Complete(ctx context.Context, bookingID string) error {
	const op = "booking.Complete"

	body := map[string]string{"bookingId": bookingID}
	return c.do(ctx, op, http.MethodPut, "/drivers/done", body, nil)
}

// Cancel cancels the booking on behalf of the driver.
func (c *Client) Cancel(ctx context.Context, bookingID, driverID string) error {
	const op = "booking.Cancel"

	body := map[string]string{
		"bookingId": bookingID,
		"driverId":  driverID,
	}
	return c.do(ctx, op, http.MethodPut, "/drivers/cancel", body, nil)
}

// Status fetches the backend's current view of a booking. The coordinator
// calls this to reconcile after an ambiguous call outcome.
func (c *Client) Status(ctx context.Context, bookingID string) (*models.BookingRecord, error) {
	const op = "booking.Status"

	var record models.BookingRecord
	path := fmt.Sprintf("/bookings/%s", url.PathEscape(bookingID))
	if err := c.do(ctx, op, http.MethodGet, path, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Passenger fetches a passenger profile to enrich an incoming offer.
func (c *Client) Passenger(ctx context.Context, id string) (*models.Passenger, error) {
	const op = "booking.Passenger"

	var passenger models.Passenger
	path := fmt.Sprintf("/passengers/%s", url.PathEscape(id))
	if err := c.do(ctx, op, http.MethodGet, path, nil, &passenger); err != nil {
		return nil, err
	}
	return &passenger, nil
}

// do issues a single request and decodes the response into out (if non-nil).
// Transport failures and timeouts map to ErrNetwork; non-2xx statuses map to
// their typed kind via classifyStatus.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordGatewayRequest(serviceName, op, err, time.Since(start))
	}()

	var reqBody io.Reader
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("%s: failed to marshal request body: %w", op, merr)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionBackendCallFailed)
		return wrap.Error(ctx, fmt.Errorf("%s: %w: %v", op, types.ErrBackendUnreachable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ctx = wrap.WithAction(ctx, types.ActionBackendCallFailed)
		return wrap.Error(ctx, fmt.Errorf("%s: %w (status %d)", op, classifyStatus(resp.StatusCode), resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
	}

	return nil
}
