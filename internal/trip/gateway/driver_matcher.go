package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trip-hail-system/internal/trip/model"
	"trip-hail-system/internal/trip/service"
)

// DriverMatcherClient talks to the driver-location service: candidate
// queries, invitation dispatch, and the atomic claim arbiter.
type DriverMatcherClient struct {
	baseURL string
	http    *http.Client
}

func NewDriverMatcherClient(baseURL string, timeout time.Duration) *DriverMatcherClient {
	return &DriverMatcherClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *DriverMatcherClient) NearbyDrivers(ctx context.Context, location model.LatLng, radiusMeters, limit int) ([]string, error) {
	reqBody := map[string]any{
		"location": location,
		"radius":   radiusMeters,
		"limit":    limit,
	}

	var respBody struct {
		Drivers []struct {
			DriverID string `json:"driver_id"`
		} `json:"drivers"`
	}
	if err := c.post(ctx, "/v1/drivers/nearby", reqBody, &respBody); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(respBody.Drivers))
	for _, d := range respBody.Drivers {
		ids = append(ids, d.DriverID)
	}
	return ids, nil
}

func (c *DriverMatcherClient) PrepareAssign(ctx context.Context, tripID string, candidateIDs []string, ttlSeconds int) (bool, error) {
	reqBody := map[string]any{
		"trip_id":       tripID,
		"candidate_ids": candidateIDs,
		"ttl_seconds":   ttlSeconds,
	}

	var respBody struct {
		Queued bool `json:"queued"`
	}
	if err := c.post(ctx, "/v1/assignments/prepare", reqBody, &respBody); err != nil {
		return false, err
	}
	return respBody.Queued, nil
}

// ClaimTrip asks the matcher to atomically award the trip to the driver. The
// matcher linearizes concurrent claims per trip; a transport failure is
// reported as an error and the caller treats it as a declined verdict.
func (c *DriverMatcherClient) ClaimTrip(ctx context.Context, tripID, driverID string) (service.ClaimVerdict, error) {
	reqBody := map[string]any{
		"trip_id":   tripID,
		"driver_id": driverID,
	}

	var respBody struct {
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/v1/assignments/claim", reqBody, &respBody); err != nil {
		return service.ClaimDeclined, err
	}

	if respBody.Status == string(service.ClaimAccepted) {
		return service.ClaimAccepted, nil
	}
	return service.ClaimDeclined, nil
}

func (c *DriverMatcherClient) post(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("driver matcher call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("driver matcher returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode driver matcher response: %w", err)
	}
	return nil
}
