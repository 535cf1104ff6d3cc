package rpc

import (
	"clgrpell/pkg/batch"
	"clgrpell/pkg/types"
)

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status Status `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Job describes the batch a coordinator is running.
type Job struct {
	RunID   string        `json:"run_id"`
	Params  batch.Params `json:"params"`
	Workers int           `json:"workers"`
}

type JobResponse struct {
	Response
	Job
}

type RegisterResponse struct {
	Response
	WorkerID types.WorkerID `json:"worker_id"`
	Job      Job            `json:"job"`
}

type AssignmentResponse struct {
	Response
	Index types.ShardIndex `json:"index"`
}

type ShardsResponse struct {
	Response
	Summary types.Summary      `json:"summary"`
	Shards  []types.ShardState `json:"shards"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
