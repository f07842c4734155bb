package httpapi

import "github.com/google/uuid"

// sourceRef is the {id, name} pair the /coordinator response lists.
type sourceRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type coordinatorResponse struct {
	Success     bool        `json:"success"`
	JobsCreated int         `json:"jobsCreated"`
	Sources     []sourceRef `json:"sources"`
}

type jobResultView struct {
	JobID          uuid.UUID `json:"jobId"`
	SourceID       uuid.UUID `json:"sourceId"`
	Outcome        string    `json:"outcome"`
	EventsScraped  int       `json:"eventsScraped"`
	EventsInserted int       `json:"eventsInserted"`
	Duplicates     int       `json:"duplicates"`
	Error          string    `json:"error,omitempty"`
}

type batchSummaryView struct {
	Processed int             `json:"processed"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
	Results   []jobResultView `json:"results"`
}

type workerResponse struct {
	Success          bool             `json:"success"`
	AllJobsSucceeded bool             `json:"allJobsSucceeded"`
	Processed        int              `json:"processed"`
	BatchSize        int              `json:"batchSize"`
	Summary          batchSummaryView `json:"summary"`
}

type discoveryWorkerResponse struct {
	Success              bool        `json:"success"`
	Job                  interface{} `json:"job"`
	PendingJobsRemaining int         `json:"pendingJobsRemaining"`
}

type healerSourceResultView struct {
	SourceID   uuid.UUID `json:"sourceId"`
	Outcome    string    `json:"outcome"`
	Confidence float64   `json:"confidence"`
	Error      string    `json:"error,omitempty"`
}

type healerResponse struct {
	Success bool                     `json:"success"`
	Results []healerSourceResultView `json:"results"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
