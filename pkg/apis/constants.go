package apis

const (
	// Self-defined Fields
	Filter   = "filter"
	Exploded = "exploded"
)
