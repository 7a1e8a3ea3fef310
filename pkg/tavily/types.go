package tavily

// Config binds the client from the environment.
type Config struct {
	APIKey     string `envconfig:"TAVILY_API_KEY"`
	BaseURL    string `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	MaxResults int    `envconfig:"TAVILY_MAX_RESULTS" default:"5"`
}

// SearchRequest is the request body for the /search endpoint.
type SearchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results,omitempty"`
	SearchDepth string `json:"search_depth,omitempty"` // "basic" or "advanced"
	Topic       string `json:"topic,omitempty"`
}

// SearchResponse is the response from the /search endpoint.
type SearchResponse struct {
	Query        string   `json:"query"`
	Answer       string   `json:"answer"`
	Results      []Result `json:"results"`
	ResponseTime float64  `json:"response_time"`
}

// Result is one ranked web page snippet.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ErrorResponse is the error body returned by Tavily.
type ErrorResponse struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}
