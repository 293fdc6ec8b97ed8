package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/models"
)

// Client is a Go SDK for the gradetrack API
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLanguage sets the Accept-Language sent with every request
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// WithToken starts the client with an existing session token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new gradetrack client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetToken replaces the session token used for authenticated calls
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// APIError is a failure reported by the API envelope
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Code, e.Message)
}

// AuthSession is a signed-in session
type AuthSession struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	NewUser   bool         `json:"new_user"`
}

// SignUpRequest represents an email/password registration
type SignUpRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Me is the signed-in user with their profile
type Me struct {
	User     *models.User    `json:"user"`
	Profile  *models.Profile `json:"profile"`
	Initials string          `json:"initials"`
}

// DashboardQuery narrows the course listing of a dashboard
type DashboardQuery struct {
	Search   string
	Semester int
	Category string
	Sort     grades.SortKey
}

type sessionResult struct {
	Session *AuthSession `json:"session"`
	Notice  string       `json:"notice"`
}

type noticeResult struct {
	Notice string `json:"notice"`
}

type profileResult struct {
	Profile *models.Profile `json:"profile"`
	Notice  string          `json:"notice"`
}

type courseResult struct {
	Course *models.Course `json:"course"`
	Notice string         `json:"notice"`
}

type coursesResult struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
	Notice  string          `json:"notice"`
}

// Auth

// SignUp registers an account. The returned token is not stored; see
// Session for stateful use.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*AuthSession, string, error) {
	var result sessionResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/signup", req, &result); err != nil {
		return nil, "", err
	}
	return result.Session, result.Notice, nil
}

// SignIn authenticates with email and password
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthSession, string, error) {
	req := map[string]string{"email": email, "password": password}
	var result sessionResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/signin", req, &result); err != nil {
		return nil, "", err
	}
	return result.Session, result.Notice, nil
}

// SignInWithGoogle authenticates with a Google ID token
func (c *Client) SignInWithGoogle(ctx context.Context, idToken string) (*AuthSession, string, error) {
	req := map[string]string{"id_token": idToken}
	var result sessionResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/google", req, &result); err != nil {
		return nil, "", err
	}
	return result.Session, result.Notice, nil
}

// SendPasswordReset asks for a reset link to be mailed to email
func (c *Client) SendPasswordReset(ctx context.Context, email string) (string, error) {
	var result noticeResult
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/password-reset", map[string]string{"email": email}, &result)
	return result.Notice, err
}

// ConfirmPasswordReset sets a new password with a mailed reset token
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password, confirm string) (string, error) {
	req := map[string]string{
		"token":            token,
		"password":         password,
		"password_confirm": confirm,
	}
	var result noticeResult
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/password-reset/confirm", req, &result)
	return result.Notice, err
}

// SignOut revokes the current session token
func (c *Client) SignOut(ctx context.Context) (string, error) {
	var result noticeResult
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/signout", nil, &result)
	return result.Notice, err
}

// Profile and account

// Me returns the signed-in user
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.call(ctx, http.MethodGet, "/api/v1/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Profile returns the user's profile
func (c *Client) Profile(ctx context.Context) (*models.Profile, error) {
	var result profileResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/profile", nil, &result); err != nil {
		return nil, err
	}
	return result.Profile, nil
}

// UpdateProfile changes the set fields of update
func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.Profile, string, error) {
	var result profileResult
	if err := c.call(ctx, http.MethodPut, "/api/v1/profile", update, &result); err != nil {
		return nil, "", err
	}
	return result.Profile, result.Notice, nil
}

// DeleteAccount removes the account and all of its data
func (c *Client) DeleteAccount(ctx context.Context) (string, error) {
	var result noticeResult
	err := c.call(ctx, http.MethodDelete, "/api/v1/account", nil, &result)
	return result.Notice, err
}

// Courses

// ListCourses retrieves all courses in creation order
func (c *Client) ListCourses(ctx context.Context) ([]models.Course, error) {
	var result coursesResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/courses", nil, &result); err != nil {
		return nil, err
	}
	return result.Courses, nil
}

// GetCourse retrieves a course by ID
func (c *Client) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var result courseResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/courses/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return result.Course, nil
}

// AddCourse creates a course
func (c *Client) AddCourse(ctx context.Context, in models.CourseInput) (*models.Course, string, error) {
	var result courseResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/courses", in, &result); err != nil {
		return nil, "", err
	}
	return result.Course, result.Notice, nil
}

// UpdateCourse replaces the fields of a course
func (c *Client) UpdateCourse(ctx context.Context, id string, in models.CourseInput) (*models.Course, string, error) {
	var result courseResult
	if err := c.call(ctx, http.MethodPut, "/api/v1/courses/"+url.PathEscape(id), in, &result); err != nil {
		return nil, "", err
	}
	return result.Course, result.Notice, nil
}

// DeleteCourse removes a course
func (c *Client) DeleteCourse(ctx context.Context, id string) (string, error) {
	var result noticeResult
	err := c.call(ctx, http.MethodDelete, "/api/v1/courses/"+url.PathEscape(id), nil, &result)
	return result.Notice, err
}

// ImportCourses uploads a CSV or XLSX file; the extension of filename
// selects the format.
func (c *Client) ImportCourses(ctx context.Context, filename string, data []byte) ([]models.Course, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to build upload: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/courses/import", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, "", err
	}

	var result coursesResult
	if err := decodeEnvelope(resp, &result); err != nil {
		return nil, "", err
	}
	return result.Courses, result.Notice, nil
}

// ExportCSV downloads the courses as a CSV file
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	return c.download(ctx, "/api/v1/courses/export.csv")
}

// ExportXLSX downloads the courses as an Excel workbook
func (c *Client) ExportXLSX(ctx context.Context) ([]byte, error) {
	return c.download(ctx, "/api/v1/courses/export.xlsx")
}

// Dashboard retrieves the server-computed dashboard
func (c *Client) Dashboard(ctx context.Context, q DashboardQuery) (*grades.Dashboard, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("q", q.Search)
	}
	if q.Semester > 0 {
		params.Set("semester", strconv.Itoa(q.Semester))
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Sort != "" {
		params.Set("sort", string(q.Sort))
	}

	path := "/api/v1/dashboard"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var d grades.Dashboard
	if err := c.call(ctx, http.MethodGet, path, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Shield runs the grade shield calculator
func (c *Client) Shield(ctx context.Context, in grades.ShieldInput) (*grades.ShieldResult, error) {
	var result grades.ShieldResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/shield", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", "", nil)
	return err
}

// call sends in as JSON and decodes the envelope data into out
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, method, path, "application/json", body)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

func (c *Client) download(ctx context.Context, path string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, path, "", nil)
}

func decodeEnvelope(data []byte, out interface{}) error {
	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request. Error statuses are returned as
// *APIError when the body carries an error envelope.
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var result struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &result) == nil && result.Error != nil {
			return nil, &APIError{Status: resp.StatusCode, Code: result.Error.Code, Message: result.Error.Message}
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
