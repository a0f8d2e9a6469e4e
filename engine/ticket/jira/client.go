package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/minutemate/minutemate/engine/ticket"
	"github.com/minutemate/minutemate/pkg/config"
)

var ErrAccountNotFound = errors.New("jira account not found")

type Config struct {
	BaseURL      string
	Email        string
	APIToken     string
	ProjectKey   string
	IssueType    string
	Timeout      time.Duration
	UserCacheTTL time.Duration
	RetryCount   int
}

func ConfigFrom(cfg *config.JiraConfig) Config {
	return Config{
		BaseURL:      cfg.BaseURL,
		Email:        cfg.Email,
		APIToken:     cfg.APIToken.Value(),
		ProjectKey:   cfg.ProjectKey,
		IssueType:    cfg.IssueType,
		Timeout:      cfg.Timeout,
		UserCacheTTL: cfg.UserCache,
		RetryCount:   2,
	}
}

// Client talks to the Jira Cloud REST API v3.
type Client struct {
	http     *resty.Client
	cfg      Config
	accounts *expirable.LRU[string, string]
}

var _ ticket.Tracker = (*Client)(nil)
var _ ticket.AccountResolver = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("jira: base url is required")
	}
	if cfg.ProjectKey == "" {
		return nil, errors.New("jira: project key is required")
	}
	if cfg.IssueType == "" {
		cfg.IssueType = "Task"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserCacheTTL <= 0 {
		cfg.UserCacheTTL = 30 * time.Minute
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.Email, cfg.APIToken).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryable)
	return &Client{
		http:     client,
		cfg:      cfg,
		accounts: expirable.NewLRU[string, string](512, nil, cfg.UserCacheTTL),
	}, nil
}

// retryable never retries issue creation: a lost response could otherwise
// produce a second issue.
func retryable(resp *resty.Response, err error) bool {
	if resp != nil && resp.Request != nil && resp.Request.Method == http.MethodPost {
		return false
	}
	if err != nil {
		return true
	}
	return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
}

// APIError is the Jira error envelope.
type APIError struct {
	Status        int               `json:"-"`
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

func (e *APIError) Error() string {
	parts := append([]string(nil), e.ErrorMessages...)
	for field, msg := range e.Errors {
		parts = append(parts, field+": "+msg)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("jira: status %d", e.Status)
	}
	return fmt.Sprintf("jira: status %d: %s", e.Status, strings.Join(parts, "; "))
}

func apiError(resp *resty.Response) error {
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}

type createResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

func (c *Client) CreateIssue(ctx context.Context, issue ticket.Issue) (string, error) {
	fields := map[string]any{
		"project":     map[string]string{"key": c.cfg.ProjectKey},
		"summary":     truncate(issue.Summary, 255),
		"description": document(issue.Description),
		"issuetype":   map[string]string{"name": c.cfg.IssueType},
		"priority":    map[string]string{"name": issue.PriorityName},
	}
	if issue.AssigneeAccountID != "" {
		fields["assignee"] = map[string]string{"accountId": issue.AssigneeAccountID}
	}
	if issue.DueDate != nil {
		fields["duedate"] = issue.DueDate.String()
	}
	if len(issue.Labels) > 0 {
		fields["labels"] = issue.Labels
	}
	var out createResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"fields": fields}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/rest/api/3/issue")
	if err != nil {
		return "", fmt.Errorf("jira create issue: %w", err)
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	if out.Key == "" {
		return "", errors.New("jira create issue: response has no key")
	}
	return out.Key, nil
}

func (c *Client) SetAssignee(ctx context.Context, issueKey, accountID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("key", issueKey).
		SetBody(map[string]string{"accountId": accountID}).
		SetError(&APIError{}).
		Put("/rest/api/3/issue/{key}/assignee")
	if err != nil {
		return fmt.Errorf("jira assign %s: %w", issueKey, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

type statusResponse struct {
	Fields struct {
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"fields"`
}

func (c *Client) IssueStatus(ctx context.Context, issueKey string) (string, error) {
	var out statusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("key", issueKey).
		SetQueryParam("fields", "status").
		SetResult(&out).
		SetError(&APIError{}).
		Get("/rest/api/3/issue/{key}")
	if err != nil {
		return "", fmt.Errorf("jira status %s: %w", issueKey, err)
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	return out.Fields.Status.Name, nil
}

type user struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// FindAccountID searches users by email. Hits are cached.
func (c *Client) FindAccountID(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if id, ok := c.accounts.Get(email); ok {
		return id, nil
	}
	var users []user
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("query", email).
		SetResult(&users).
		SetError(&APIError{}).
		Get("/rest/api/3/user/search")
	if err != nil {
		return "", fmt.Errorf("jira user search: %w", err)
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	for _, u := range users {
		if u.AccountID != "" && (u.EmailAddress == "" || strings.EqualFold(u.EmailAddress, email)) {
			c.accounts.Add(email, u.AccountID)
			return u.AccountID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrAccountNotFound, email)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
