package models

// ModelVerdict is the response contract shared by all external-model
// providers: a label token, a confidence, and a short justification. Any
// backend may be swapped as long as it honors this shape.
type ModelVerdict struct {
	Label         string  `json:"label"`
	Confidence    float64 `json:"confidence"`
	Justification string  `json:"justification"`
}
