package kodo

// PfopOptions carries the optional parameters of a persistent operation
// submission.
type PfopOptions struct {
	// NotifyURL is the webhook the pipeline calls on completion.
	NotifyURL string
	// Pipeline is the named processing queue to submit to.
	Pipeline string
	// Force re-executes the operation even if a result already exists.
	Force bool
}

// pfopResponse is the provider's response to a pfop submission.
type pfopResponse struct {
	// PersistentID is the pipeline-assigned task id.
	PersistentID string `json:"persistentId"`
	// Error is the provider error message, if any.
	Error string `json:"error"`
}

// qhashResponse is the response of a ?qhash data transform.
type qhashResponse struct {
	// Hash is the requested content hash.
	Hash string `json:"hash"`
}
