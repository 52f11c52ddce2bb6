package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const defaultVehicleAPIURL = "https://driver-vehicle-licensing.api.gov.uk/vehicle-enquiry/v1/vehicles"

var whitespaceRE = regexp.MustCompile(`\s+`)

// vehicleClient proxies registration-number lookups to the national vehicle
// registry. Upstream failures are passed through with their status and body;
// nothing is retried or synthesized.
type vehicleClient struct {
	url    string
	apiKey string
	client *http.Client
}

func newVehicleClient(url, apiKey string) *vehicleClient {
	return &vehicleClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Lookup cleans the registration (uppercase, no whitespace) and queries the
// registry. On a non-2xx answer the returned error carries the upstream
// status and raw body.
func (c *vehicleClient) Lookup(ctx context.Context, registration string) (json.RawMessage, error) {
	cleaned := whitespaceRE.ReplaceAllString(strings.ToUpper(registration), "")

	payload, err := json.Marshal(map[string]string{"registrationNumber": cleaned})
	if err != nil {
		return nil, errInternal("Failed to build lookup request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errInternal("Failed to build lookup request", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errUpstream(0, nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errUpstream(resp.StatusCode, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errUpstream(resp.StatusCode, body)
	}
	return body, nil
}

// VehicleLookupHandler lets the listing form auto-fill from a registration
// number.
func (api *API) VehicleLookupHandler(w http.ResponseWriter, r *http.Request) {
	var req vehicleLookupRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	if strings.TrimSpace(req.RegistrationNumber) == "" {
		api.writeError(w, r, errValidation("registrationNumber is required"))
		return
	}

	data, err := api.vehicle.Lookup(r.Context(), req.RegistrationNumber)
	if err != nil {
		logger.WithError(err).Warn("Vehicle lookup failed")
		api.writeError(w, r, err)
		return
	}

	api.writeSuccess(w, r, map[string]any{"data": data})
}
