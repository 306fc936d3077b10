package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"video_pipeline_service/internal/pipeline/domain"
	"video_pipeline_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// ErrUnexpectedStatus dispatcher answered with a status the worker does not handle
var ErrUnexpectedStatus = errors.New("unexpected dispatcher status")

// StatusError dispatcher answered, but not with a success status
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s %d: %s", ErrUnexpectedStatus, e.Op, e.Code, e.Body)
}

// Is match ErrUnexpectedStatus
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Permanent 4xx, the dispatcher will not change its answer on retry
func (e *StatusError) Permanent() bool {
	return e.Code >= http.StatusBadRequest && e.Code < http.StatusInternalServerError
}

// JobSource the dispatcher as seen from the worker
type JobSource interface {
	NextJob() (*domain.JobDescriptor, error)
	Complete(req domain.CompleteJobReq) (*domain.CompleteJobRes, error)
	Fail(storageKey, reason string) (*domain.FailJobRes, error)
}

// DispatcherClient HTTP client for /api/jobs, authenticated with the shared secret
type DispatcherClient struct {
	baseURL string
	secret  string
	timeout time.Duration
}

// NewDispatcherClient baseURL is the api prefix, e.g. http://localhost:3000/api
func NewDispatcherClient(baseURL, secret string, timeout time.Duration) *DispatcherClient {
	return &DispatcherClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		timeout: timeout,
	}
}

// NextJob nil job when the queue is empty (204)
func (d *DispatcherClient) NextJob() (*domain.JobDescriptor, error) {
	agent := fiber.Get(d.baseURL + "/jobs/next")
	code, body, err := d.do(agent)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNoContent {
		return nil, nil
	}
	if code != http.StatusOK {
		return nil, &StatusError{Op: "jobs/next", Code: code, Body: string(body)}
	}

	var job domain.JobDescriptor
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Complete report a finished transcode
func (d *DispatcherClient) Complete(req domain.CompleteJobReq) (*domain.CompleteJobRes, error) {
	var res domain.CompleteJobRes
	if err := d.post("/jobs/complete", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Fail report a failed transcode
func (d *DispatcherClient) Fail(storageKey, reason string) (*domain.FailJobRes, error) {
	var res domain.FailJobRes
	if err := d.post("/jobs/fail", domain.FailJobReq{StorageKey: storageKey, Reason: reason}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (d *DispatcherClient) post(path string, payload, out interface{}) error {
	agent := fiber.Post(d.baseURL + path).JSON(payload)
	code, body, err := d.do(agent)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return &StatusError{Op: strings.TrimPrefix(path, "/"), Code: code, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (d *DispatcherClient) do(agent *fiber.Agent) (int, []byte, error) {
	agent.Set(middlewares.TranscoderSecretHeader, d.secret)
	if d.timeout > 0 {
		agent.Timeout(d.timeout)
	}
	if err := agent.Parse(); err != nil {
		return 0, nil, fmt.Errorf("dispatcher request: %w", err)
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return 0, nil, fmt.Errorf("dispatcher request: %w", errors.Join(errs...))
	}
	return code, body, nil
}
