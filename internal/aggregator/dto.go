package aggregator

// submitRequest is the body of POST /api/submit
type submitRequest struct {
	Query string `json:"query"`
}

// submitResponse is returned by POST /api/submit
type submitResponse struct {
	PK     string `json:"pk"`
	Status string `json:"status,omitempty"`
}

// Actor identifies the agent behind a child message
type Actor struct {
	Agent string `json:"agent"`
}

// Child is one agent's message under a parent query
type Child struct {
	Message     string `json:"message"`
	Actor       Actor  `json:"actor"`
	Status      string `json:"status"`
	ResultCount int    `json:"result_count,omitempty"`
}

// TraceResponse is returned by GET /api/messages/{pk}?trace=y
type TraceResponse struct {
	Message   string  `json:"message"`
	Status    string  `json:"status"`
	Query     string  `json:"query,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Children  []Child `json:"children,omitempty"`
}

// Answer is one result in an agent message
type Answer struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Evidence    int     `json:"evidence,omitempty"`
}

// MessageResponse is returned by GET /api/messages/{pk}
type MessageResponse struct {
	Message string   `json:"message"`
	Status  string   `json:"status"`
	Agent   string   `json:"agent,omitempty"`
	Results []Answer `json:"results,omitempty"`
}
