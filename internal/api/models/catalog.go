package models

// CatalogSource identifies which upstream endpoint served a response.
type CatalogSource struct {
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

// SourceDomain carries the domain outbound links should point at.
type SourceDomain struct {
	Domain string `json:"domain"`
}

// CatalogResponse is the normalized envelope every catalog route returns,
// regardless of which upstream envelope shape the data arrived in.
type CatalogResponse struct {
	Data            interface{}   `json:"data"`
	ConfidenceScore float64       `json:"confidence_score"`
	Source          CatalogSource `json:"source"`
	FetchedAt       Timestamp     `json:"fetched_at"`
}
