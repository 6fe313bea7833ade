// Package dashboard is a thin typed client for the pet-care dashboard REST
// API. Only the endpoints the voice handlers need are covered.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNoPet = errors.New("dashboard: pet not found")

// APIError is a non-2xx reply from the dashboard.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dashboard API returned %d: %s", e.Status, e.Body)
}

type Pet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Breed     string    `json:"breed,omitempty"`
	BirthDate time.Time `json:"birthDate,omitempty"`
}

// HealthLog covers feeding, weight, activity and medication entries.
type HealthLog struct {
	ID        string            `json:"id,omitempty"`
	PetID     string            `json:"petId"`
	Type      string            `json:"type"`
	Value     float64           `json:"value,omitempty"`
	Unit      string            `json:"unit,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	LoggedAt  time.Time         `json:"loggedAt"`
	CreatedAt time.Time         `json:"createdAt,omitempty"`
}

type Appointment struct {
	ID       string    `json:"id,omitempty"`
	PetID    string    `json:"petId"`
	Title    string    `json:"title"`
	Location string    `json:"location,omitempty"`
	Date     time.Time `json:"date"`
	Notes    string    `json:"notes,omitempty"`
}

type Medication struct {
	ID        string    `json:"id"`
	PetID     string    `json:"petId"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage,omitempty"`
	Frequency string    `json:"frequency,omitempty"`
	NextDose  time.Time `json:"nextDose,omitempty"`
}

type HealthRecord struct {
	ID    string    `json:"id"`
	PetID string    `json:"petId"`
	Kind  string    `json:"kind"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

type Milestone struct {
	ID    string    `json:"id"`
	PetID string    `json:"petId"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

type Expense struct {
	ID       string    `json:"id,omitempty"`
	PetID    string    `json:"petId"`
	Amount   float64   `json:"amount"`
	Category string    `json:"category,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	Date     time.Time `json:"date"`
}

// API is what the handlers consume. *Client implements it.
type API interface {
	ListPets(ctx context.Context) ([]Pet, error)
	FindPet(ctx context.Context, name string) (*Pet, error)
	CreateHealthLog(ctx context.Context, l HealthLog) (*HealthLog, error)
	ListHealthLogs(ctx context.Context, petID, logType string) ([]HealthLog, error)
	ListAppointments(ctx context.Context, petID string) ([]Appointment, error)
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	ListMedications(ctx context.Context, petID string) ([]Medication, error)
	ListHealthRecords(ctx context.Context, petID string) ([]HealthRecord, error)
	ListMilestones(ctx context.Context, petID string) ([]Milestone, error)
	CreateExpense(ctx context.Context, e Expense) (*Expense, error)
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  httpClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func byPet(petID string) url.Values {
	if petID == "" {
		return nil
	}
	return url.Values{"petId": {petID}}
}

func (c *Client) ListPets(ctx context.Context) ([]Pet, error) {
	var out []Pet
	return out, c.do(ctx, http.MethodGet, "/v1/pets", nil, nil, &out)
}

// FindPet matches name case-insensitively against the owner's pets.
func (c *Client) FindPet(ctx context.Context, name string) (*Pet, error) {
	pets, err := c.ListPets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pets {
		if strings.EqualFold(pets[i].Name, name) {
			return &pets[i], nil
		}
	}
	return nil, ErrNoPet
}

func (c *Client) CreateHealthLog(ctx context.Context, l HealthLog) (*HealthLog, error) {
	var out HealthLog
	if err := c.do(ctx, http.MethodPost, "/v1/health-logs", nil, l, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListHealthLogs(ctx context.Context, petID, logType string) ([]HealthLog, error) {
	q := byPet(petID)
	if logType != "" {
		if q == nil {
			q = url.Values{}
		}
		q.Set("type", logType)
	}
	var out []HealthLog
	return out, c.do(ctx, http.MethodGet, "/v1/health-logs", q, nil, &out)
}

func (c *Client) ListAppointments(ctx context.Context, petID string) ([]Appointment, error) {
	var out []Appointment
	return out, c.do(ctx, http.MethodGet, "/v1/appointments", byPet(petID), nil, &out)
}

func (c *Client) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	var out Appointment
	if err := c.do(ctx, http.MethodPost, "/v1/appointments", nil, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMedications(ctx context.Context, petID string) ([]Medication, error) {
	var out []Medication
	return out, c.do(ctx, http.MethodGet, "/v1/medications", byPet(petID), nil, &out)
}

func (c *Client) ListHealthRecords(ctx context.Context, petID string) ([]HealthRecord, error) {
	var out []HealthRecord
	return out, c.do(ctx, http.MethodGet, "/v1/health-records", byPet(petID), nil, &out)
}

func (c *Client) ListMilestones(ctx context.Context, petID string) ([]Milestone, error) {
	var out []Milestone
	return out, c.do(ctx, http.MethodGet, "/v1/milestones", byPet(petID), nil, &out)
}

func (c *Client) CreateExpense(ctx context.Context, e Expense) (*Expense, error) {
	var out Expense
	if err := c.do(ctx, http.MethodPost, "/v1/expenses", nil, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
