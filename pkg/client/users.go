package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	appErrors "pitchside/pkg/errors"
)

// User is the directory service's view of a purchaser.
type User struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// UserClient talks to the user directory service. Bookings only ever
// resolve purchasers by phone, creating the user on first contact.
type UserClient struct {
	httpClient *HttpClient
}

func NewUserClient(baseURL string) *UserClient {
	return &UserClient{
		httpClient: NewHttpClient(baseURL),
	}
}

// FindOrCreateByPhone resolves a purchaser's user record, creating one
// when the phone is unknown. The directory treats the call as an
// idempotent upsert.
func (c *UserClient) FindOrCreateByPhone(phone, name string) (*User, error) {
	body := map[string]string{
		"phone": phone,
		"name":  name,
	}
	resp, err := c.httpClient.POST("/api/v1/users/find-or-create", body)
	if err != nil {
		return nil, appErrors.Unavailable("user directory").WithDetails(map[string]any{"cause": err.Error()})
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, appErrors.Wrap(
			fmt.Errorf("user directory returned %d: %s", resp.StatusCode, GetErrorMessage(resp)),
			appErrors.CodeUnavailable,
			"user directory rejected the request",
			http.StatusServiceUnavailable,
		)
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode user wrapper: %w", err)
	}

	var user User
	if err := json.Unmarshal(wrapper.Data, &user); err != nil {
		return nil, fmt.Errorf("could not decode user json: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("user directory returned a user without an id")
	}

	return &user, nil
}

// GetByID fetches a user record by its directory identifier.
func (c *UserClient) GetByID(id string) (*User, error) {
	resp, err := c.httpClient.GET("/api/v1/users/id/" + url.PathEscape(id))
	if err != nil {
		return nil, appErrors.Unavailable("user directory").WithDetails(map[string]any{"cause": err.Error()})
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, appErrors.NotFoundWithID("User", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user directory returned %d: %s", resp.StatusCode, GetErrorMessage(resp))
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode user wrapper: %w", err)
	}

	var user User
	if err := json.Unmarshal(wrapper.Data, &user); err != nil {
		return nil, fmt.Errorf("could not decode user json: %w", err)
	}

	return &user, nil
}
