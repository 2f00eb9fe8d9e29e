package model

type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Probability float32 `json:"probability"`
	Verdict     string  `json:"verdict"`
	Message     string  `json:"message"`
}

// InputSize is the number of float32 values the model expects per run.
func (m Metadata) InputSize() int {
	if len(m.InputShape) == 0 {
		return 0
	}
	n := 1
	for _, d := range m.InputShape {
		n *= int(d)
	}
	return n
}
