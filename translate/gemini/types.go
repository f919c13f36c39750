package gemini

import (
	"strconv"
	"strings"

	llmgemini "github.com/samshapley/ancientgrok/llm/gemini"
)

// Wire types for the Gemini batch API. A batch job is a long-running
// operation whose metadata carries progress counters and whose response, once
// done, carries the inlined per-request results.

type createBatchRequest struct {
	Batch batchSpec `json:"batch"`
}

type batchSpec struct {
	DisplayName string      `json:"displayName"`
	InputConfig inputConfig `json:"inputConfig"`
}

type inputConfig struct {
	Requests requestList `json:"requests"`
}

type requestList struct {
	Requests []inlinedRequest `json:"requests"`
}

type inlinedRequest struct {
	Request  llmgemini.GenerateContentRequest `json:"request"`
	Metadata map[string]string                `json:"metadata,omitempty"`
}

type operation struct {
	Name     string         `json:"name"`
	Done     bool           `json:"done"`
	Metadata *batchMetadata `json:"metadata,omitempty"`
	Response *batchOutput   `json:"response,omitempty"`
	Error    *statusError   `json:"error,omitempty"`
}

type batchMetadata struct {
	State      string      `json:"state"`
	BatchStats *batchStats `json:"batchStats,omitempty"`
}

type batchStats struct {
	RequestCount           flexInt `json:"requestCount"`
	SuccessfulRequestCount flexInt `json:"successfulRequestCount"`
	FailedRequestCount     flexInt `json:"failedRequestCount"`
	PendingRequestCount    flexInt `json:"pendingRequestCount"`
}

type batchOutput struct {
	InlinedResponses *inlinedResponseList `json:"inlinedResponses,omitempty"`
}

type inlinedResponseList struct {
	InlinedResponses []inlinedResponse `json:"inlinedResponses"`
}

type inlinedResponse struct {
	Metadata map[string]string                  `json:"metadata,omitempty"`
	Response *llmgemini.GenerateContentResponse `json:"response,omitempty"`
	Error    *statusError                       `json:"error,omitempty"`
}

type statusError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// flexInt tolerates Google's int64-as-string JSON encoding alongside plain
// numbers. Batch stats counters arrive as strings.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}
