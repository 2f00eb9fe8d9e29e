package diagnosis

// Threshold is the fixed decision boundary. Probabilities strictly above it
// are classified as pneumonia.
const Threshold float32 = 0.5

type Verdict string

const (
	Warning     Verdict = "pneumonia"
	Affirmative Verdict = "normal"
)

const (
	msgWarning     = "High probability of Pneumonia. Please consult a doctor for further evaluation."
	msgAffirmative = "Low probability of Pneumonia. Consider regular check-ups."
)

func Decide(probability float32) Verdict {
	if probability > Threshold {
		return Warning
	}
	return Affirmative
}

func (v Verdict) Message() string {
	if v == Warning {
		return msgWarning
	}
	return msgAffirmative
}

// Style is the banner style the UI renders the message with.
func (v Verdict) Style() string {
	if v == Warning {
		return "error"
	}
	return "success"
}
