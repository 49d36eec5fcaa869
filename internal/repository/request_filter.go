package repository

type RequestFilter struct {
	Q           string
	Stage       string
	RequestType string
	Priority    string
	Department  string
	CreatedBy   string
	Limit       int
	Offset      int
	Sort        string // created_at, updated_at, priority, request_id
	Order       string // asc|desc
}
