// Package client is a typed Go client for the inventory HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"inventoryapi/internal/apperr"
	"inventoryapi/internal/batch"
	"inventoryapi/internal/item"
	"inventoryapi/internal/level"
	"inventoryapi/internal/location"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the API at baseURL. A nil httpClient means
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// APIError is a non-2xx response. It unwraps to the matching apperr sentinel
// so callers can use errors.Is across the wire.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inventory api: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return apperr.ErrInvalidInput
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		if strings.Contains(e.Message, apperr.ErrAlreadyConnected.Error()) {
			return apperr.ErrAlreadyConnected
		}
		return apperr.ErrConflict
	case http.StatusUnprocessableEntity:
		for _, sentinel := range []error{apperr.ErrBothMissing, apperr.ErrLocationMissing, apperr.ErrItemMissing} {
			if strings.Contains(e.Message, sentinel.Error()) {
				return sentinel
			}
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Error) > 0 {
		var message string
		if json.Unmarshal(payload.Error, &message) == nil {
			apiErr.Message = message
		} else {
			apiErr.Message = string(payload.Error)
		}
	}
	return apiErr
}

// IsAPIError reports whether err came back from the server with the given status.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func (c *Client) CreateItem(ctx context.Context, id int64, fields item.Fields) (*item.Item, error) {
	in := struct {
		ID int64 `json:"id"`
		item.Fields
	}{ID: id, Fields: fields}

	var out struct {
		Item *item.Item `json:"inventory_item"`
	}
	if err := c.do(ctx, http.MethodPost, "/inventory_item", nil, in, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (c *Client) GetItem(ctx context.Context, id int64) (*item.Item, error) {
	var out struct {
		Item *item.Item `json:"inventory_item"`
	}
	if err := c.do(ctx, http.MethodGet, "/inventory_item/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (c *Client) GetItems(ctx context.Context, ids []int64) ([]batch.Entry[item.Item], error) {
	var out struct {
		Items []batch.Entry[item.Item] `json:"inventory_items"`
	}
	query := url.Values{"ids": {batch.JoinIDs(ids)}}
	if err := c.do(ctx, http.MethodGet, "/inventory_item", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) ListItems(ctx context.Context) ([]*item.Item, error) {
	var out struct {
		Items []*item.Item `json:"inventory_items"`
	}
	if err := c.do(ctx, http.MethodGet, "/inventory_item/retrieve", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) EditItem(ctx context.Context, id int64, fields item.Fields) (*item.Item, error) {
	var out struct {
		Item *item.Item `json:"inventory_item"`
	}
	if err := c.do(ctx, http.MethodPut, "/inventory_item/"+strconv.FormatInt(id, 10), nil, fields, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (c *Client) DeleteItem(ctx context.Context, id int64) (int64, error) {
	return c.deleted(ctx, "/inventory_item/"+strconv.FormatInt(id, 10), nil)
}

func (c *Client) DeleteItems(ctx context.Context, ids []int64) (int64, error) {
	return c.deleted(ctx, "/inventory_item", url.Values{"ids": {batch.JoinIDs(ids)}})
}

func (c *Client) CreateLocation(ctx context.Context, id int64, fields location.Fields) (*location.Location, error) {
	in := struct {
		ID int64 `json:"id"`
		location.Fields
	}{ID: id, Fields: fields}

	var out struct {
		Location *location.Location `json:"location"`
	}
	if err := c.do(ctx, http.MethodPost, "/location", nil, in, &out); err != nil {
		return nil, err
	}
	return out.Location, nil
}

func (c *Client) GetLocation(ctx context.Context, id int64) (*location.Location, error) {
	var out struct {
		Location *location.Location `json:"location"`
	}
	if err := c.do(ctx, http.MethodGet, "/location/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Location, nil
}

func (c *Client) ListLocations(ctx context.Context) ([]*location.Location, error) {
	var out struct {
		Locations []*location.Location `json:"locations"`
	}
	if err := c.do(ctx, http.MethodGet, "/location/retrieve", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Locations, nil
}

func (c *Client) DeleteLocation(ctx context.Context, id int64) (int64, error) {
	return c.deleted(ctx, "/location/"+strconv.FormatInt(id, 10), nil)
}

type pair struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
}

func (c *Client) Connect(ctx context.Context, itemID, locationID int64) (*level.Level, error) {
	return c.levelWrite(ctx, "/inventory_levels/connect", pair{itemID, locationID})
}

func (c *Client) Set(ctx context.Context, itemID, locationID, available int64) (*level.Level, error) {
	return c.levelWrite(ctx, "/inventory_levels/set", struct {
		pair
		Available int64 `json:"available"`
	}{pair{itemID, locationID}, available})
}

func (c *Client) Adjust(ctx context.Context, itemID, locationID, delta int64) (*level.Level, error) {
	return c.levelWrite(ctx, "/inventory_levels/adjust", struct {
		pair
		AvailableAdjustment int64 `json:"available_adjustment"`
	}{pair{itemID, locationID}, delta})
}

func (c *Client) levelWrite(ctx context.Context, path string, in any) (*level.Level, error) {
	var out struct {
		Level *level.Level `json:"inventory_level"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, in, &out); err != nil {
		return nil, err
	}
	return out.Level, nil
}

func (c *Client) RetrieveLevels(ctx context.Context, itemIDs, locationIDs []int64) ([]batch.Entry[level.Level], error) {
	var out struct {
		Levels []batch.Entry[level.Level] `json:"inventory_levels"`
	}
	query := url.Values{
		"inventory_item_ids": {batch.JoinIDs(itemIDs)},
		"location_ids":       {batch.JoinIDs(locationIDs)},
	}
	if err := c.do(ctx, http.MethodGet, "/inventory_levels", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Levels, nil
}

func (c *Client) ListLevels(ctx context.Context) ([]*level.Level, error) {
	var out struct {
		Levels []*level.Level `json:"inventory_levels"`
	}
	if err := c.do(ctx, http.MethodGet, "/inventory_levels/retrieve", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Levels, nil
}

func (c *Client) History(ctx context.Context, itemID, locationID int64) ([]level.Change, error) {
	var out struct {
		Changes []level.Change `json:"changes"`
	}
	if err := c.do(ctx, http.MethodGet, "/inventory_levels/history", pairQuery(itemID, locationID), nil, &out); err != nil {
		return nil, err
	}
	return out.Changes, nil
}

func (c *Client) DeleteLevel(ctx context.Context, itemID, locationID int64) (int64, error) {
	return c.deleted(ctx, "/inventory_levels", pairQuery(itemID, locationID))
}

func pairQuery(itemID, locationID int64) url.Values {
	return url.Values{
		"inventory_item_id": {strconv.FormatInt(itemID, 10)},
		"location_id":       {strconv.FormatInt(locationID, 10)},
	}
}

func (c *Client) deleted(ctx context.Context, path string, query url.Values) (int64, error) {
	var out struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	if err := c.do(ctx, http.MethodDelete, path, query, nil, &out); err != nil {
		return 0, err
	}
	return out.DeletedCount, nil
}
