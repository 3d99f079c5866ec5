package police

// streetCrime is one element of the crimes-street response.
// Coordinates are encoded as strings by the API.
type streetCrime struct {
	Category        string         `json:"category"`
	LocationType    string         `json:"location_type"`
	Location        crimeLocation  `json:"location"`
	Context         string         `json:"context"`
	OutcomeStatus   *outcomeStatus `json:"outcome_status"`
	PersistentID    string         `json:"persistent_id"`
	ID              int64          `json:"id"`
	LocationSubtype string         `json:"location_subtype"`
	Month           string         `json:"month"`
}

type crimeLocation struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Street    struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"street"`
}

type outcomeStatus struct {
	Category string `json:"category"`
	Date     string `json:"date"`
}

// lastUpdatedResponse is the body of /crime-last-updated.
type lastUpdatedResponse struct {
	Date string `json:"date"`
}
