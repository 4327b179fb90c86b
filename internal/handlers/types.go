package handlers

// CreateShortURLRequest is the request body for creating a short URL.
// URL is optional in the schema so that a missing value reaches the
// shortener's own validation and is reported as a 400.
type CreateShortURLRequest struct {
	Body struct {
		URL string `doc:"The URL to shorten" example:"https://example.com/very/long/path" json:"url,omitempty" required:"false"`
	}
}

// CreateShortURLResponse is the response for a shortened URL.
type CreateShortURLResponse struct {
	Body struct {
		ShortURL    string `doc:"The full short URL" example:"http://localhost:8888/00000001"     json:"shortUrl"`
		Code        string `doc:"The short code"     example:"00000001"                           json:"code"`
		OriginalURL string `doc:"The original URL"   example:"https://example.com/very/long/path" json:"originalUrl"`
	}
}

// RedirectRequest is the request for redirecting a short URL.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"00000001" path:"code"`
}

// RedirectResponse redirects to the original URL.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}
