package mutation

// Status is the lifecycle state an envelope reports.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Envelope is the uniform result shape returned to callers and passed
// to the success and error callbacks.
type Envelope struct {
	Status  Status `json:"status"`
	Action  Kind   `json:"action"`
	Summary string `json:"summary"`

	// Data and Count are the server-returned result.
	Data  []JSON `json:"data,omitempty"`
	Count *int64 `json:"count,omitempty"`

	// OptimisticData echoes the speculative input (stamped row or
	// dataset) this mutation was called with.
	OptimisticData  interface{} `json:"optimisticData,omitempty"`
	OptimisticCount *int64      `json:"optimisticCount,omitempty"`

	// Sent is the payload actually delivered to the backend, with the
	// speculative stamps stripped.
	Sent interface{} `json:"sent,omitempty"`

	Error    *Failure `json:"error,omitempty"`
	Metadata JSON     `json:"metadata,omitempty"`
}

// Failure is the normalized error reported to UI bindings, carrying
// enough context to render a failure state without exception handling.
type Failure struct {
	Message        string      `json:"message"`
	Action         Kind        `json:"action"`
	Summary        string      `json:"summary"`
	Sent           interface{} `json:"sent,omitempty"`
	OptimisticData interface{} `json:"optimisticData,omitempty"`
	Metadata       JSON        `json:"metadata,omitempty"`

	cause error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// summaries are the human phrases shown by UI toasts, keyed by kind and
// status.
var summaries = map[Kind]map[Status]string{
	KindInsert: {
		StatusPending: "Add in progress",
		StatusSuccess: "Successfully added row",
		StatusError:   "Error adding row",
	},
	KindUpdate: {
		StatusPending: "Edit in progress",
		StatusSuccess: "Successfully edited row",
		StatusError:   "Error editing row",
	},
	KindDelete: {
		StatusPending: "Delete in progress",
		StatusSuccess: "Successfully deleted row",
		StatusError:   "Error deleting row",
	},
	KindFlexible: {
		StatusPending: "Operation in progress",
		StatusSuccess: "Successfully ran operation",
		StatusError:   "Error running operation",
	},
	KindRPC: {
		StatusPending: "Call in progress",
		StatusSuccess: "Successfully called procedure",
		StatusError:   "Error calling procedure",
	},
}

func summary(kind Kind, status Status) string {
	if phrases, exists := summaries[kind]; exists {
		return phrases[status]
	}
	return ""
}
